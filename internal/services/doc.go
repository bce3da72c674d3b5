// Package services defines shared utilities consumed by the batch engine, the
// comic lifecycle, and the job definitions.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, job and step names, comic IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (permanent vs retryable) without string matching.
//
// Use these helpers when wiring new job logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
