package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	return c.validateJobs()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func (c *Config) validateBatch() error {
	if c.Batch.ChunkSize <= 0 {
		return errors.New("batch.chunk_size must be positive")
	}
	for name, size := range c.Batch.ChunkSizes {
		if size <= 0 {
			return fmt.Errorf("batch.chunk_sizes.%s must be positive", name)
		}
	}
	if c.Batch.RetryInitialMillis < 0 {
		return errors.New("batch.retry_initial_ms must be non-negative")
	}
	if c.Batch.ItemsPerSecond < 0 {
		return errors.New("batch.items_per_second must be non-negative")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.PollInterval <= 0 {
		return errors.New("jobs.poll_interval must be positive")
	}
	if c.Jobs.WaitTimeout < 0 {
		return errors.New("jobs.wait_timeout must be non-negative")
	}
	switch c.Jobs.LockBackend {
	case LockBackendNone, LockBackendFile:
	case LockBackendRedis:
		if strings.TrimSpace(c.Jobs.RedisURL) == "" {
			return errors.New("jobs.redis_url must be set when jobs.lock_backend is redis")
		}
		if c.Jobs.LockTTL <= 0 {
			return errors.New("jobs.lock_ttl must be positive when jobs.lock_backend is redis")
		}
	default:
		return fmt.Errorf("jobs.lock_backend: unsupported value %q", c.Jobs.LockBackend)
	}
	return nil
}
