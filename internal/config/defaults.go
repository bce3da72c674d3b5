package config

const (
	defaultLibraryDir         = "~/comics"
	defaultDataDir            = "~/.local/share/folio"
	defaultLogDir             = "~/.local/share/folio/logs"
	defaultLockDir            = "~/.local/share/folio/locks"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultChunkSize          = 10
	defaultWriteAttempts      = 3
	defaultRetryInitialMillis = 200
	defaultPollInterval       = 5
	defaultWaitTimeout        = 30
	defaultLockBackend        = LockBackendFile
	defaultLockTTL            = 300
	defaultRenamingRule       = "$PUBLISHER/$SERIES/$SERIES v$VOLUME #$ISSUE"
)

// Lock backends accepted by jobs.lock_backend.
const (
	LockBackendNone  = "none"
	LockBackendFile  = "file"
	LockBackendRedis = "redis"
)

// DefaultJobs lists the jobs the daemon runs when jobs.enabled is empty.
var DefaultJobs = []string{"import", "load-contents", "mark-blocked-pages", "update-missing"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			LockDir:    defaultLockDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Batch: Batch{
			ChunkSize:          defaultChunkSize,
			WriteAttempts:      defaultWriteAttempts,
			RetryInitialMillis: defaultRetryInitialMillis,
			ProcessConcurrency: 1,
		},
		Jobs: Jobs{
			PollInterval: defaultPollInterval,
			WaitTimeout:  defaultWaitTimeout,
			LockBackend:  defaultLockBackend,
			LockTTL:      defaultLockTTL,
		},
		Organize: Organize{
			RenamingRule: defaultRenamingRule,
		},
	}
}
