package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"folio/internal/comic"
)

// Variables recognised in renaming rules.
const (
	VarPublisher = "PUBLISHER"
	VarSeries    = "SERIES"
	VarVolume    = "VOLUME"
	VarIssue     = "ISSUE"
	VarTitle     = "TITLE"
)

// Unknown replaces metadata that is missing from a record.
const Unknown = "Unknown"

var variablePattern = regexp.MustCompile(`\$\{?([A-Z]+)\}?`)

var knownVariables = map[string]struct{}{
	VarPublisher: {},
	VarSeries:    {},
	VarVolume:    {},
	VarIssue:     {},
	VarTitle:     {},
}

// ErrEmptyRule is returned for a blank renaming rule.
var ErrEmptyRule = errors.New("renaming rule is empty")

// Namer expands renaming rules such as "$PUBLISHER/$SERIES/$SERIES v$VOLUME #$ISSUE"
// into archive paths. Forward slashes in the rule separate directories.
type Namer struct {
	// FoldAccents strips diacritics from expanded values.
	FoldAccents bool
	// TitleCase title-cases publisher, series, and title values.
	TitleCase bool
	// IssueDigits zero-pads purely numeric issue numbers to this width.
	IssueDigits int
}

// New returns a Namer with the library defaults.
func New() *Namer {
	return &Namer{FoldAccents: true, IssueDigits: 3}
}

// Validate checks that rule only references known variables.
func Validate(rule string) error {
	if strings.TrimSpace(rule) == "" {
		return ErrEmptyRule
	}
	for _, match := range variablePattern.FindAllStringSubmatch(rule, -1) {
		if _, ok := knownVariables[match[1]]; !ok {
			return fmt.Errorf("renaming rule: unknown variable $%s", match[1])
		}
	}
	return nil
}

// TargetPath returns where record belongs under targetDir according to rule.
// The original archive extension is kept.
func (n *Namer) TargetPath(record *comic.Record, targetDir, rule string) (string, error) {
	if record == nil {
		return "", errors.New("record is nil")
	}
	if strings.TrimSpace(targetDir) == "" {
		return "", errors.New("target directory is empty")
	}
	relative, err := n.Expand(record, rule)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(record.Filename))
	return filepath.Join(targetDir, filepath.FromSlash(relative)) + ext, nil
}

// Expand substitutes record metadata into rule and sanitizes each path
// segment. The result uses forward slashes and has no extension.
func (n *Namer) Expand(record *comic.Record, rule string) (string, error) {
	if err := Validate(rule); err != nil {
		return "", err
	}
	values := n.values(record)
	expanded := variablePattern.ReplaceAllStringFunc(rule, func(token string) string {
		name := variablePattern.FindStringSubmatch(token)[1]
		// Slashes inside values must not create directories.
		return strings.ReplaceAll(values[name], "/", "-")
	})

	segments := strings.Split(expanded, "/")
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if clean := SanitizeSegment(segment); clean != "" {
			out = append(out, clean)
		}
	}
	if len(out) == 0 {
		return "", fmt.Errorf("renaming rule %q produced an empty path", rule)
	}
	return strings.Join(out, "/"), nil
}

func (n *Namer) values(record *comic.Record) map[string]string {
	text := func(value string, titled bool) string {
		value = strings.TrimSpace(value)
		if value == "" {
			return Unknown
		}
		if n.FoldAccents {
			value = FoldAccents(value)
		}
		if titled && n.TitleCase {
			value = cases.Title(language.Und).String(value)
		}
		return value
	}
	return map[string]string{
		VarPublisher: text(record.Publisher, true),
		VarSeries:    text(record.Series, true),
		VarVolume:    text(record.Volume, false),
		VarIssue:     n.issue(record.Issue),
		VarTitle:     text(record.Title, true),
	}
}

func (n *Namer) issue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return Unknown
	}
	if n.IssueDigits > 0 {
		if number, err := strconv.Atoi(value); err == nil && number >= 0 {
			return fmt.Sprintf("%0*d", n.IssueDigits, number)
		}
	}
	return value
}
