package comic

import "fmt"

// Flag names one of the boolean processing flags on a Record.
type Flag string

const (
	FlagMissing            Flag = "missing"
	FlagContentsLoaded     Flag = "contents_loaded"
	FlagBlockedPagesMarked Flag = "blocked_pages_marked"
	FlagRecreating         Flag = "recreating"
)

// Valid reports whether f is a known flag.
func (f Flag) Valid() bool {
	switch f {
	case FlagMissing, FlagContentsLoaded, FlagBlockedPagesMarked, FlagRecreating:
		return true
	default:
		return false
	}
}

// CriteriaKind discriminates the Criteria variants.
type CriteriaKind int

const (
	CriteriaAll CriteriaKind = iota
	CriteriaStates
	CriteriaFlag
	CriteriaAnd
	CriteriaOr
	CriteriaNot
)

func (k CriteriaKind) String() string {
	switch k {
	case CriteriaAll:
		return "all"
	case CriteriaStates:
		return "states"
	case CriteriaFlag:
		return "flag"
	case CriteriaAnd:
		return "and"
	case CriteriaOr:
		return "or"
	case CriteriaNot:
		return "not"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Criteria selects records. Only the fields relevant to Kind are set; build
// values with the constructor functions rather than by hand.
type Criteria struct {
	Kind     CriteriaKind
	States   []State
	Flag     Flag
	Value    bool
	Children []Criteria
}

// All matches every record.
func All() Criteria { return Criteria{Kind: CriteriaAll} }

// InStates matches records whose state is one of states.
func InStates(states ...State) Criteria {
	return Criteria{Kind: CriteriaStates, States: append([]State(nil), states...)}
}

// FlagIs matches records whose flag equals value.
func FlagIs(flag Flag, value bool) Criteria {
	return Criteria{Kind: CriteriaFlag, Flag: flag, Value: value}
}

// And matches records satisfying every child.
func And(children ...Criteria) Criteria {
	return Criteria{Kind: CriteriaAnd, Children: append([]Criteria(nil), children...)}
}

// Or matches records satisfying at least one child.
func Or(children ...Criteria) Criteria {
	return Criteria{Kind: CriteriaOr, Children: append([]Criteria(nil), children...)}
}

// Not inverts child.
func Not(child Criteria) Criteria {
	return Criteria{Kind: CriteriaNot, Children: []Criteria{child}}
}

// Validate checks that the tree is well formed.
func (c Criteria) Validate() error {
	switch c.Kind {
	case CriteriaAll:
		return nil
	case CriteriaStates:
		if len(c.States) == 0 {
			return fmt.Errorf("criteria: states selector is empty")
		}
		for _, state := range c.States {
			if !state.Valid() {
				return fmt.Errorf("criteria: unknown state %q", state)
			}
		}
		return nil
	case CriteriaFlag:
		if !c.Flag.Valid() {
			return fmt.Errorf("criteria: unknown flag %q", c.Flag)
		}
		return nil
	case CriteriaAnd, CriteriaOr:
		for _, child := range c.Children {
			if err := child.Validate(); err != nil {
				return err
			}
		}
		return nil
	case CriteriaNot:
		if len(c.Children) != 1 {
			return fmt.Errorf("criteria: not requires exactly one child, got %d", len(c.Children))
		}
		return c.Children[0].Validate()
	default:
		return fmt.Errorf("criteria: unsupported kind %s", c.Kind)
	}
}

// Matches evaluates the criteria against r. Malformed trees never match.
func (c Criteria) Matches(r *Record) bool {
	if r == nil {
		return false
	}
	switch c.Kind {
	case CriteriaAll:
		return true
	case CriteriaStates:
		for _, state := range c.States {
			if r.State == state {
				return true
			}
		}
		return false
	case CriteriaFlag:
		return c.Flag.Valid() && r.Flag(c.Flag) == c.Value
	case CriteriaAnd:
		for _, child := range c.Children {
			if !child.Matches(r) {
				return false
			}
		}
		return true
	case CriteriaOr:
		for _, child := range c.Children {
			if child.Matches(r) {
				return true
			}
		}
		return false
	case CriteriaNot:
		return len(c.Children) == 1 && !c.Children[0].Matches(r)
	default:
		return false
	}
}
