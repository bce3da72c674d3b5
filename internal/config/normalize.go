package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeBatch()
	c.normalizeJobs()
	return c.normalizeOrganize()
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockDir) == "" {
		c.Paths.LockDir = defaultLockDir
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeBatch() {
	if c.Batch.WriteAttempts <= 0 {
		c.Batch.WriteAttempts = 1
	}
	if c.Batch.ProcessConcurrency <= 0 {
		c.Batch.ProcessConcurrency = 1
	}
	if len(c.Batch.ChunkSizes) > 0 {
		sizes := make(map[string]int, len(c.Batch.ChunkSizes))
		for name, size := range c.Batch.ChunkSizes {
			sizes[strings.ToLower(strings.TrimSpace(name))] = size
		}
		c.Batch.ChunkSizes = sizes
	}
}

func (c *Config) normalizeJobs() {
	c.Jobs.LockBackend = strings.ToLower(strings.TrimSpace(c.Jobs.LockBackend))
	if c.Jobs.LockBackend == "" {
		c.Jobs.LockBackend = defaultLockBackend
	}
	c.Jobs.RedisURL = strings.TrimSpace(c.Jobs.RedisURL)
	if len(c.Jobs.Enabled) == 0 {
		c.Jobs.Enabled = append([]string(nil), DefaultJobs...)
		return
	}
	enabled := make([]string, 0, len(c.Jobs.Enabled))
	seen := make(map[string]struct{}, len(c.Jobs.Enabled))
	for _, name := range c.Jobs.Enabled {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		enabled = append(enabled, normalized)
	}
	c.Jobs.Enabled = enabled
}

func (c *Config) normalizeOrganize() error {
	c.Organize.RenamingRule = strings.TrimSpace(c.Organize.RenamingRule)
	if c.Organize.RenamingRule == "" {
		c.Organize.RenamingRule = defaultRenamingRule
	}
	var err error
	if strings.TrimSpace(c.Organize.TargetDir) == "" {
		c.Organize.TargetDir = c.Paths.LibraryDir
	} else if c.Organize.TargetDir, err = expandPath(c.Organize.TargetDir); err != nil {
		return fmt.Errorf("organize.target_dir: %w", err)
	}
	if strings.TrimSpace(c.Lifecycle.TablePath) != "" {
		if c.Lifecycle.TablePath, err = expandPath(c.Lifecycle.TablePath); err != nil {
			return fmt.Errorf("lifecycle.table_path: %w", err)
		}
	}
	return nil
}
