// Command folio is the command-line entry point for the comic library.
//
// Subcommands queue archives for import, launch batch jobs on demand, fire
// lifecycle events against single records, inspect job runs and library
// statistics, and run the long-lived daemon that polls each enabled job.
// Every subcommand opens the SQLite store directly; the daemon lock and the
// per-job locks keep concurrent invocations from stepping on each other.
package main
