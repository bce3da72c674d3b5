package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"folio/internal/comic"
)

// Registry resolves guard and action names used in table files.
type Registry struct {
	Guards  map[string]*Guard
	Actions map[string]*Action
}

// DefaultRegistry knows every built-in guard and action.
func DefaultRegistry() Registry {
	reg := Registry{Guards: map[string]*Guard{}, Actions: map[string]*Action{}}
	for _, g := range []*Guard{GuardMarkAsMissing, GuardMarkAsFound, GuardContentsProcessed, GuardConsolidate, GuardNotRecreating} {
		reg.Guards[g.Name] = g
	}
	for _, a := range []*Action{ActionResetProcessing, ActionClearMetadata, ActionMarkRecreating, ActionApplyFilename, ActionSetMissing, ActionClearMissing} {
		reg.Actions[a.Name] = a
	}
	return reg
}

type tableFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Source stateList `yaml:"source"`
	Event  string    `yaml:"event"`
	Target string    `yaml:"target"`
	Guard  string    `yaml:"guard"`
	Action string    `yaml:"action"`
}

// stateList accepts either a single state or a sequence of states.
type stateList []string

func (s *stateList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = stateList{node.Value}
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*s = values
		return nil
	default:
		return fmt.Errorf("line %d: source must be a state or list of states", node.Line)
	}
}

// LoadTable parses a YAML rule file:
//
//	rules:
//	  - source: [stable, changed]
//	    event: markMissing
//	    target: self
//	    guard: markAsMissing
//	    action: setMissing
//
// A target of "self" keeps the source state.
func LoadTable(r io.Reader, reg Registry) (*Table, error) {
	var file tableFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Problems: []string{"table file is empty"}}
		}
		return nil, &ConfigError{Problems: []string{"parse: " + err.Error()}}
	}

	var rules []Rule
	var problems []string
	for idx, entry := range file.Rules {
		built, errs := entry.rules(idx, reg)
		problems = append(problems, errs...)
		rules = append(rules, built...)
	}
	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return NewTable(rules)
}

// LoadTableFile reads a table from path.
func LoadTableFile(path string, reg Registry) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transition table: %w", err)
	}
	defer file.Close()
	return LoadTable(file, reg)
}

func (e ruleEntry) rules(idx int, reg Registry) ([]Rule, []string) {
	var problems []string
	prefix := fmt.Sprintf("rule %d", idx+1)

	event, err := comic.ParseEvent(e.Event)
	if err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", prefix, err))
	}
	if len(e.Source) == 0 {
		problems = append(problems, prefix+": source is required")
	}

	var guard *Guard
	if name := strings.TrimSpace(e.Guard); name != "" {
		if guard = reg.Guards[name]; guard == nil {
			problems = append(problems, fmt.Sprintf("%s: unknown guard %q", prefix, name))
		}
	}
	var action *Action
	if name := strings.TrimSpace(e.Action); name != "" {
		if action = reg.Actions[name]; action == nil {
			problems = append(problems, fmt.Sprintf("%s: unknown action %q", prefix, name))
		}
	}

	self := strings.EqualFold(strings.TrimSpace(e.Target), "self")
	var target comic.State
	if !self {
		if target, err = comic.ParseState(e.Target); err != nil {
			problems = append(problems, fmt.Sprintf("%s: target: %v", prefix, err))
		}
	}

	var rules []Rule
	for _, raw := range e.Source {
		source, err := comic.ParseState(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: source: %v", prefix, err))
			continue
		}
		to := target
		if self {
			to = source
		}
		rules = append(rules, Rule{Source: source, Event: event, Target: to, Guard: guard, Action: action})
	}
	if len(problems) > 0 {
		return nil, problems
	}
	return rules, nil
}
