// Package lifecycle implements the comic lifecycle state machine.
//
// A Table maps (state, event) pairs to a target state plus an optional guard
// and action; tables are validated once, when built or loaded from YAML, and
// are immutable afterwards. Evaluate is a pure function over a table and a
// record: it never writes the caller's record. Machine wraps Evaluate, commits
// the resulting state, and fans the change out to registered listeners, whose
// failures are logged but never undo the commit.
//
// Guard rejections and missing rules are reported as TransitionError values
// so callers can treat them as no-ops; action failures leave the record
// untouched and propagate.
package lifecycle
