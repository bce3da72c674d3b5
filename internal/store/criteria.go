package store

import (
	"fmt"
	"strings"

	"folio/internal/comic"
)

var flagColumns = map[comic.Flag]string{
	comic.FlagMissing:            "missing",
	comic.FlagContentsLoaded:     "contents_loaded",
	comic.FlagBlockedPagesMarked: "blocked_pages_marked",
	comic.FlagRecreating:         "recreating",
}

// compileCriteria turns a criteria tree into a parenthesised WHERE fragment
// with positional arguments.
func compileCriteria(c comic.Criteria) (string, []any, error) {
	switch c.Kind {
	case comic.CriteriaAll:
		return "1=1", nil, nil
	case comic.CriteriaStates:
		if len(c.States) == 0 {
			return "", nil, fmt.Errorf("empty states selector")
		}
		args := make([]any, len(c.States))
		for i, state := range c.States {
			args[i] = string(state)
		}
		return "state IN (" + makePlaceholders(len(c.States)) + ")", args, nil
	case comic.CriteriaFlag:
		column, ok := flagColumns[c.Flag]
		if !ok {
			return "", nil, fmt.Errorf("unknown flag %q", c.Flag)
		}
		return column + " = ?", []any{boolToInt(c.Value)}, nil
	case comic.CriteriaAnd, comic.CriteriaOr:
		if len(c.Children) == 0 {
			if c.Kind == comic.CriteriaAnd {
				return "1=1", nil, nil
			}
			return "0=1", nil, nil
		}
		joiner := " AND "
		if c.Kind == comic.CriteriaOr {
			joiner = " OR "
		}
		parts := make([]string, 0, len(c.Children))
		var args []any
		for _, child := range c.Children {
			clause, childArgs, err := compileCriteria(child)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+clause+")")
			args = append(args, childArgs...)
		}
		return strings.Join(parts, joiner), args, nil
	case comic.CriteriaNot:
		if len(c.Children) != 1 {
			return "", nil, fmt.Errorf("not requires exactly one child")
		}
		clause, args, err := compileCriteria(c.Children[0])
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + clause + ")", args, nil
	default:
		return "", nil, fmt.Errorf("unsupported criteria kind %s", c.Kind)
	}
}
