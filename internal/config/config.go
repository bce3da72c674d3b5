package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvPrefix is prepended to every environment override recognised by Load.
const EnvPrefix = "FOLIO_"

// Paths contains directory configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir" env:"LIBRARY_DIR"`
	DataDir    string `toml:"data_dir" env:"DATA_DIR"`
	LogDir     string `toml:"log_dir" env:"LOG_DIR"`
	LockDir    string `toml:"lock_dir" env:"LOCK_DIR"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"LOG_FORMAT"`
	Level  string `toml:"level" env:"LOG_LEVEL"`
}

// Batch contains chunk engine defaults shared by every job.
type Batch struct {
	// ChunkSize is the default number of items committed per chunk.
	ChunkSize int `toml:"chunk_size" env:"CHUNK_SIZE"`
	// ChunkSizes overrides ChunkSize per job name.
	ChunkSizes map[string]int `toml:"chunk_sizes"`
	// WriteAttempts bounds retries of idempotent writers. 1 disables retries.
	WriteAttempts int `toml:"write_attempts" env:"WRITE_ATTEMPTS"`
	// RetryInitialMillis is the first backoff interval between write attempts.
	RetryInitialMillis int `toml:"retry_initial_ms"`
	// ProcessConcurrency enables parallel processing for side-effect-free processors.
	ProcessConcurrency int `toml:"process_concurrency" env:"PROCESS_CONCURRENCY"`
	// ItemsPerSecond throttles item reads; 0 disables throttling.
	ItemsPerSecond float64 `toml:"items_per_second" env:"ITEMS_PER_SECOND"`
}

// Jobs contains job launching and daemon polling configuration.
type Jobs struct {
	PollInterval int      `toml:"poll_interval" env:"POLL_INTERVAL"`
	WaitTimeout  int      `toml:"wait_timeout" env:"WAIT_TIMEOUT"`
	LockBackend  string   `toml:"lock_backend" env:"LOCK_BACKEND"`
	RedisURL     string   `toml:"redis_url" env:"REDIS_URL"`
	LockTTL      int      `toml:"lock_ttl"`
	Enabled      []string `toml:"enabled" env:"JOBS_ENABLED" envSeparator:","`
}

// Organize contains configuration for the library consolidation job.
type Organize struct {
	TargetDir          string `toml:"target_dir" env:"TARGET_DIR"`
	RenamingRule       string `toml:"renaming_rule" env:"RENAMING_RULE"`
	DeleteRemovedFiles bool   `toml:"delete_removed_files"`
}

// Lifecycle contains configuration for the comic state machine.
type Lifecycle struct {
	// TablePath optionally replaces the built-in transition table with a YAML file.
	TablePath string `toml:"table_path" env:"TRANSITION_TABLE"`
}

// Config encapsulates all configuration values for Folio.
//
// Configuration sections by subsystem:
//   - Paths: library, data, log, and lock directories
//   - Logging: log format and level
//   - Batch: chunk sizes, writer retries, processing concurrency
//   - Jobs: polling intervals and single-instance locking
//   - Organize: consolidation target directory and renaming rule
//   - Lifecycle: transition table override
type Config struct {
	Paths     Paths     `toml:"paths"`
	Logging   Logging   `toml:"logging"`
	Batch     Batch     `toml:"batch"`
	Jobs      Jobs      `toml:"jobs"`
	Organize  Organize  `toml:"organize"`
	Lifecycle Lifecycle `toml:"lifecycle"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/folio/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// variables prefixed with FOLIO_ override file values. The returned config has
// all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, "", false, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("folio.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so jobs that do not touch the
// library can run while external storage is offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.LockDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// DatabasePath returns the location of the library database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "folio.db")
}

// ChunkSizeFor returns the chunk size configured for the named job.
func (c *Config) ChunkSizeFor(job string) int {
	if size, ok := c.Batch.ChunkSizes[job]; ok && size > 0 {
		return size
	}
	return c.Batch.ChunkSize
}

// PollInterval returns the daemon lane polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollInterval) * time.Second
}

// WaitTimeout returns how long a job launch waits for new work before giving up.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Jobs.WaitTimeout) * time.Second
}

// RetryInitialInterval returns the first backoff interval for writer retries.
func (c *Config) RetryInitialInterval() time.Duration {
	return time.Duration(c.Batch.RetryInitialMillis) * time.Millisecond
}

// LockTTL returns the expiry applied to distributed job locks.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Jobs.LockTTL) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
