// Package daemon coordinates the long-running Folio process.
//
// It wires configuration, the library store, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances,
// and offers a library scan that feeds the import job's intake queue.
//
// Keep orchestration logic here: job semantics live in internal/jobs while
// the daemon focuses on startup, shutdown, and status.
package daemon
