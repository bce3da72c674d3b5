package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"folio/internal/comic"
)

// Change describes a committed (or committable) transition.
type Change struct {
	Prior   comic.State
	Event   comic.Event
	Target  comic.State
	Record  *comic.Record
	Headers Headers
}

var errStateMutated = errors.New("action changed record state")

// Evaluate applies event to record without touching it: the rule is looked
// up, its guard checked, and its action run against a private copy. On
// success the returned Change holds the updated copy with State set to the
// rule target; committing it is the caller's responsibility.
func Evaluate(ctx context.Context, table *Table, env Env, record *comic.Record, event comic.Event, headers Headers) (Change, error) {
	if table == nil {
		return Change{}, &ConfigError{Problems: []string{"no table loaded"}}
	}
	if record == nil {
		return Change{}, errors.New("evaluate: nil record")
	}

	rule, ok := table.Lookup(record.State, event)
	if !ok {
		return Change{}, &TransitionError{
			Code:    CodeIllegalTransition,
			ComicID: record.ID,
			State:   record.State,
			Event:   event,
		}
	}

	t := &Transition{
		Record:  record.Clone(),
		Source:  rule.Source,
		Event:   event,
		Target:  rule.Target,
		Headers: headers.Clone(),
		Env:     env,
	}

	if rule.Guard != nil {
		allowed, err := checkGuard(ctx, rule.Guard, t)
		if err != nil || !allowed {
			return Change{}, &TransitionError{
				Code:    CodeGuardRejected,
				ComicID: record.ID,
				State:   record.State,
				Event:   event,
				Rule:    rule.Guard.Name,
				Err:     err,
			}
		}
	}

	if rule.Action != nil {
		err := runAction(ctx, rule.Action, t)
		if err == nil && t.Record.State != rule.Source {
			err = errStateMutated
		}
		if err != nil {
			return Change{}, &TransitionError{
				Code:    CodeActionFailure,
				ComicID: record.ID,
				State:   record.State,
				Event:   event,
				Rule:    rule.Action.Name,
				Err:     err,
			}
		}
	}

	t.Record.State = rule.Target
	return Change{
		Prior:   rule.Source,
		Event:   event,
		Target:  rule.Target,
		Record:  t.Record,
		Headers: t.Headers,
	}, nil
}

func checkGuard(ctx context.Context, guard *Guard, t *Transition) (allowed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			allowed = false
			err = fmt.Errorf("guard panic: %v", r)
		}
	}()
	return guard.Allow(ctx, t), nil
}

func runAction(ctx context.Context, action *Action, t *Transition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()
	return action.Run(ctx, t)
}
