// Package batch runs chunk-oriented jobs.
//
// A Step reads items one at a time, gathers them into chunks, hands every
// item to a Processor, and writes the survivors of each chunk through a
// Writer inside a single transaction. A Job sequences steps and may repeat
// them; the Launcher executes jobs, records each run through a
// RunRepository, and refuses to start a second run of a job that is already
// active.
package batch
