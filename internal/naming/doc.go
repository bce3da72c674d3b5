// Package naming computes where an archive belongs under a renaming rule.
//
// Rules are strings with $VARIABLE placeholders (PUBLISHER, SERIES, VOLUME,
// ISSUE, TITLE; braces are optional) and forward slashes separating
// directories. Expanded segments are sanitized for the filesystem and the
// archive extension is preserved.
package naming
