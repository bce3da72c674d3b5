package preflight

import (
	"context"

	"folio/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Backend checks only run for the backend in use.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Data directory holds the database (always checked)
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))

	if cfg.Paths.LibraryDir != "" {
		results = append(results, CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir))
	}
	if cfg.Organize.TargetDir != "" && cfg.Organize.TargetDir != cfg.Paths.LibraryDir {
		results = append(results, CheckDirectoryAccess("Organize target", cfg.Organize.TargetDir))
	}
	results = append(results, CheckRenamingRule(cfg.Organize.RenamingRule))

	switch cfg.Jobs.LockBackend {
	case config.LockBackendFile:
		results = append(results, CheckDirectoryAccess("Lock directory", cfg.Paths.LockDir))
	case config.LockBackendRedis:
		results = append(results, CheckRedis(ctx, cfg.Jobs.RedisURL))
	}

	if cfg.Lifecycle.TablePath != "" {
		results = append(results, CheckTransitionTable(cfg.Lifecycle.TablePath))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
