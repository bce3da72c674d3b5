package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// segmentReplacer replaces filesystem-unsafe characters with safe alternatives.
var segmentReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeSegment makes one path segment safe for the filesystem. Slashes,
// backslashes, colons, and asterisks become dashes; other unsafe characters
// are removed; runs of whitespace collapse; leading dots are dropped so a
// segment can never be "." or "..".
func SanitizeSegment(value string) string {
	value = segmentReplacer.Replace(value)
	value = strings.Join(strings.Fields(value), " ")
	value = strings.TrimLeft(value, ".")
	return strings.TrimSpace(value)
}

// FoldAccents strips combining marks, turning "Astérix" into "Asterix".
func FoldAccents(value string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		return value
	}
	return folded
}
