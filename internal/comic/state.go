package comic

import (
	"fmt"
	"strings"
)

// State represents the lifecycle position of a comic record.
type State string

const (
	StateCreated     State = "created"
	StateUnprocessed State = "unprocessed"
	StateStable      State = "stable"
	StateChanged     State = "changed"
	StateDeleted     State = "deleted"
	StateRemoved     State = "removed"
)

var allStates = []State{
	StateCreated,
	StateUnprocessed,
	StateStable,
	StateChanged,
	StateDeleted,
	StateRemoved,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// AllStates returns every lifecycle state in declaration order.
func AllStates() []State {
	return append([]State(nil), allStates...)
}

// ParseState normalizes a state name, accepting any letter case.
func ParseState(value string) (State, error) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := stateSet[normalized]; !ok {
		return "", fmt.Errorf("unknown comic state %q", value)
	}
	return normalized, nil
}

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	_, ok := stateSet[s]
	return ok
}

// Terminal reports whether no transition may leave s.
func (s State) Terminal() bool {
	return s == StateRemoved
}

// Label returns the upper-case display form used in tables and logs.
func (s State) Label() string {
	return strings.ToUpper(string(s))
}
