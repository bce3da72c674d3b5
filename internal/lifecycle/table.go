package lifecycle

import (
	"fmt"
	"slices"

	"folio/internal/comic"
)

type ruleKey struct {
	source comic.State
	event  comic.Event
}

// Table is an immutable, validated set of transition rules.
type Table struct {
	rules map[ruleKey]Rule
}

// NewTable validates rules and builds a table. Every problem found is
// reported in a single ConfigError.
func NewTable(rules []Rule) (*Table, error) {
	table := &Table{rules: make(map[ruleKey]Rule, len(rules))}
	var problems []string
	for _, rule := range rules {
		if !rule.Source.Valid() {
			problems = append(problems, fmt.Sprintf("unknown source state %q", rule.Source))
			continue
		}
		if !rule.Event.Valid() {
			problems = append(problems, fmt.Sprintf("unknown event %q from %s", rule.Event, rule.Source.Label()))
			continue
		}
		if !rule.Target.Valid() {
			problems = append(problems, fmt.Sprintf("unknown target state %q for %s/%s", rule.Target, rule.Source.Label(), rule.Event))
			continue
		}
		if rule.Source.Terminal() {
			problems = append(problems, fmt.Sprintf("state %s is terminal but has a rule for %s", rule.Source.Label(), rule.Event))
			continue
		}
		if rule.Guard != nil && rule.Guard.Allow == nil {
			problems = append(problems, fmt.Sprintf("guard %q for %s/%s has no predicate", rule.Guard.Name, rule.Source.Label(), rule.Event))
			continue
		}
		if rule.Action != nil && rule.Action.Run == nil {
			problems = append(problems, fmt.Sprintf("action %q for %s/%s has no body", rule.Action.Name, rule.Source.Label(), rule.Event))
			continue
		}
		key := ruleKey{source: rule.Source, event: rule.Event}
		if _, exists := table.rules[key]; exists {
			problems = append(problems, fmt.Sprintf("duplicate rule for %s/%s", rule.Source.Label(), rule.Event))
			continue
		}
		table.rules[key] = rule
	}
	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return table, nil
}

// Lookup returns the rule for (state, event).
func (t *Table) Lookup(state comic.State, event comic.Event) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	rule, ok := t.rules[ruleKey{source: state, event: event}]
	return rule, ok
}

// Rules returns every rule ordered by source state, then event, in
// declaration order.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	rules := make([]Rule, 0, len(t.rules))
	for _, rule := range t.rules {
		rules = append(rules, rule)
	}
	states := comic.AllStates()
	events := comic.AllEvents()
	slices.SortFunc(rules, func(a, b Rule) int {
		if c := slices.Index(states, a.Source) - slices.Index(states, b.Source); c != 0 {
			return c
		}
		return slices.Index(events, a.Event) - slices.Index(events, b.Event)
	})
	return rules
}

// Events lists the events with a rule from state.
func (t *Table) Events(state comic.State) []comic.Event {
	var events []comic.Event
	for _, event := range comic.AllEvents() {
		if _, ok := t.Lookup(state, event); ok {
			events = append(events, event)
		}
	}
	return events
}

// Len returns the number of rules.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}
