// Package workflow keeps the library's jobs running in the daemon.
//
// The Manager runs one lane per enabled job. Each lane polls its Probe, runs
// the preflight checks, and launches the job through the batch Launcher
// whenever there is work, then sleeps for the poll interval. Lanes run
// independently, so a long organize run never holds up imports.
//
// WaitForWork serves one-shot callers (folio run --wait) that should start a
// job only once something arrives.
package workflow
