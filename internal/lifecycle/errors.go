package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"folio/internal/comic"
	"folio/internal/services"
)

// Code classifies a failed transition.
type Code string

const (
	CodeIllegalTransition Code = "ILLEGAL_TRANSITION"
	CodeGuardRejected     Code = "GUARD_REJECTED"
	CodeActionFailure     Code = "ACTION_FAILURE"
)

// TransitionError reports why an event did not move a record. The record is
// always left unchanged when one is returned.
type TransitionError struct {
	Code    Code
	ComicID int64
	State   comic.State
	Event   comic.Event
	// Rule names the guard or action that refused or failed, when relevant.
	Rule string
	Err  error
}

func (e *TransitionError) Error() string {
	var b strings.Builder
	switch e.Code {
	case CodeIllegalTransition:
		fmt.Fprintf(&b, "illegal transition: no rule for event %s in state %s", e.Event, e.State.Label())
	case CodeGuardRejected:
		fmt.Fprintf(&b, "guard %s rejected event %s in state %s", e.Rule, e.Event, e.State.Label())
	case CodeActionFailure:
		fmt.Fprintf(&b, "action %s failed for event %s in state %s", e.Rule, e.Event, e.State.Label())
	default:
		fmt.Fprintf(&b, "transition failed (%s) for event %s in state %s", e.Code, e.Event, e.State.Label())
	}
	if e.ComicID != 0 {
		fmt.Fprintf(&b, " (comic %d)", e.ComicID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// IsIllegalTransition reports whether err is a missing-rule failure.
func IsIllegalTransition(err error) bool {
	return hasCode(err, CodeIllegalTransition)
}

// IsGuardRejected reports whether err is a guard refusal. Callers usually
// treat it as a no-op rather than a failure.
func IsGuardRejected(err error) bool {
	return hasCode(err, CodeGuardRejected)
}

// IsActionFailure reports whether err came from a failing action.
func IsActionFailure(err error) bool {
	return hasCode(err, CodeActionFailure)
}

func hasCode(err error, code Code) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Code == code
}

// ConfigError reports an unusable transition table. It is fatal at load time.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return "transition table: " + e.Problems[0]
	}
	return fmt.Sprintf("transition table: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Unwrap ties table problems to the shared configuration marker.
func (e *ConfigError) Unwrap() error {
	return services.ErrConfiguration
}

// IsConfigError reports whether err is a transition table problem.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
