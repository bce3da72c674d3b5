package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var errNoNamer = errors.New("no renaming rule resolver configured")

// GuardMarkAsMissing allows markMissing only for a record not yet flagged
// whose file is confirmed absent.
var GuardMarkAsMissing = &Guard{
	Name: "markAsMissing",
	Allow: func(_ context.Context, t *Transition) bool {
		if t.Record.Missing || t.Env.Files == nil {
			return false
		}
		return !t.Env.Files.Exists(t.Record.Filename)
	},
}

// GuardMarkAsFound allows markFound only for a flagged record whose file is
// present again.
var GuardMarkAsFound = &Guard{
	Name: "markAsFound",
	Allow: func(_ context.Context, t *Transition) bool {
		if !t.Record.Missing || t.Env.Files == nil {
			return false
		}
		return t.Env.Files.Exists(t.Record.Filename)
	},
}

// GuardContentsProcessed requires file details, loaded contents, and marked
// blocked pages. It holds no opinion on which of those happened last.
var GuardContentsProcessed = &Guard{
	Name: "contentsProcessed",
	Allow: func(_ context.Context, t *Transition) bool {
		r := t.Record
		return r.FileDetails != nil && r.ContentsLoaded && r.BlockedPagesMarked
	},
}

// GuardConsolidate allows consolidation only when the computed target path
// differs from the current filename.
var GuardConsolidate = &Guard{
	Name: "consolidate",
	Allow: func(_ context.Context, t *Transition) bool {
		target, err := ResolveTarget(t)
		if err != nil || target == "" {
			return false
		}
		return filepath.Clean(t.Record.Filename) != target
	},
}

// GuardNotRecreating rejects records already queued for archive recreation.
var GuardNotRecreating = &Guard{
	Name: "notRecreating",
	Allow: func(_ context.Context, t *Transition) bool {
		return !t.Record.Recreating
	},
}

// ResolveTarget returns the consolidation target for t: the targetFilename
// header when set, otherwise the renaming rule applied under the target
// directory.
func ResolveTarget(t *Transition) (string, error) {
	if explicit := strings.TrimSpace(t.Headers.Get(HeaderTargetFilename)); explicit != "" {
		return filepath.Clean(explicit), nil
	}
	if t.Env.Namer == nil {
		return "", errNoNamer
	}
	target, err := t.Env.Namer.TargetPath(t.Record, t.Headers.Get(HeaderTargetDirectory), t.Headers.Get(HeaderRenamingRule))
	if err != nil {
		return "", err
	}
	return filepath.Clean(target), nil
}
