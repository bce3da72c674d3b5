package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"folio/internal/comic"
	"folio/internal/logging"
	"folio/internal/services"
)

// Listener observes committed transitions. Errors are logged and dropped.
type Listener interface {
	OnTransition(ctx context.Context, change Change) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, change Change) error

func (f ListenerFunc) OnTransition(ctx context.Context, change Change) error {
	return f(ctx, change)
}

// Machine evaluates events against a table, commits successful transitions
// into the caller's record, and notifies listeners. It holds no per-record
// state and is safe for concurrent use on different records; callers must
// serialize events for the same record.
type Machine struct {
	table     *Table
	env       Env
	logger    *slog.Logger
	listeners atomic.Pointer[[]Listener]
}

// NewMachine builds a machine over a validated table.
func NewMachine(table *Table, env Env, logger *slog.Logger) *Machine {
	return &Machine{
		table:  table,
		env:    env,
		logger: logging.NewComponentLogger(logger, "lifecycle"),
	}
}

// Table returns the rules the machine evaluates.
func (m *Machine) Table() *Table {
	return m.table
}

// AddListener registers l. Registration is safe while events are firing;
// in-flight notifications keep using the list they started with.
func (m *Machine) AddListener(l Listener) {
	if l == nil {
		return
	}
	for {
		current := m.listeners.Load()
		var next []Listener
		if current != nil {
			next = make([]Listener, 0, len(*current)+1)
			next = append(next, *current...)
		}
		next = append(next, l)
		if m.listeners.CompareAndSwap(current, &next) {
			return
		}
	}
}

// Fire evaluates event for record and, on success, writes the new state and
// auxiliary fields into record before notifying listeners in registration
// order. On error record is untouched.
func (m *Machine) Fire(ctx context.Context, record *comic.Record, event comic.Event, headers Headers) (Change, error) {
	change, err := Evaluate(ctx, m.table, m.env, record, event, headers)
	if err != nil {
		return Change{}, err
	}

	*record = *change.Record
	change.Record = record

	if record.ID != 0 {
		ctx = services.WithComicID(ctx, record.ID)
	}
	logger := logging.WithContext(ctx, m.logger)
	logger.Debug("transition committed",
		logging.String("event", string(change.Event)),
		logging.String("prior", change.Prior.Label()),
		logging.String("target", change.Target.Label()),
	)

	m.notify(ctx, logger, change)
	return change, nil
}

func (m *Machine) notify(ctx context.Context, logger *slog.Logger, change Change) {
	snapshot := m.listeners.Load()
	if snapshot == nil {
		return
	}
	for idx, listener := range *snapshot {
		if err := safeNotify(ctx, listener, change); err != nil {
			logging.WarnWithContext(logger, "transition listener failed", "listener_failed",
				logging.Int("listener_index", idx),
				logging.String("event", string(change.Event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "state change was kept; listener side effects may be incomplete"),
			)
		}
	}
}

func safeNotify(ctx context.Context, listener Listener, change Change) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return listener.OnTransition(ctx, change)
}
