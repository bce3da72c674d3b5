// Package preflight provides readiness checks for the filesystem paths and
// services that Folio depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before launching each job. If any
//     check fails, the lane skips the launch and reports the failure.
//   - The CLI "folio status" command prints every result as a table.
//
// Backend checks are gated by config -- the Redis check only runs when job
// locks live in Redis.
package preflight
