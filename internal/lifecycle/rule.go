package lifecycle

import (
	"context"
	"maps"

	"folio/internal/comic"
)

// Header keys understood by the built-in guards and actions.
const (
	HeaderTargetDirectory = "targetDirectory"
	HeaderRenamingRule    = "renamingRule"
	HeaderTargetFilename  = "targetFilename"
)

// Headers carries named values alongside an event. Actions may add to them.
type Headers map[string]string

// Get returns the value for key, or "" when absent.
func (h Headers) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[key]
}

// Clone returns an independent copy that is never nil.
func (h Headers) Clone() Headers {
	clone := make(Headers, len(h))
	maps.Copy(clone, h)
	return clone
}

// Guard decides whether a matched rule may proceed. Guards must not mutate
// the transition.
type Guard struct {
	Name  string
	Allow func(ctx context.Context, t *Transition) bool
}

// Action performs the side effects of a transition. It may update auxiliary
// record fields and headers but never the record state.
type Action struct {
	Name string
	Run  func(ctx context.Context, t *Transition) error
}

// Rule maps (Source, Event) to Target, optionally guarded and with an action.
type Rule struct {
	Source comic.State
	Event  comic.Event
	Target comic.State
	Guard  *Guard
	Action *Action
}

// GuardName returns the guard name or "".
func (r Rule) GuardName() string {
	if r.Guard == nil {
		return ""
	}
	return r.Guard.Name
}

// ActionName returns the action name or "".
func (r Rule) ActionName() string {
	if r.Action == nil {
		return ""
	}
	return r.Action.Name
}

// Transition is what guards and actions see while an event is evaluated.
// Record is a private copy; changes become visible only after commit.
type Transition struct {
	Record  *comic.Record
	Source  comic.State
	Event   comic.Event
	Target  comic.State
	Headers Headers
	Env     Env
}

// FileAdaptor is the filesystem surface consumed by guards and actions.
type FileAdaptor interface {
	Exists(path string) bool
	Move(src, dst string) error
	Delete(path string) error
	SameFile(a, b string) bool
}

// Namer computes where a record's archive belongs under a renaming rule.
type Namer interface {
	TargetPath(record *comic.Record, targetDir, rule string) (string, error)
}

// Env holds the collaborators available to guards and actions.
type Env struct {
	Files FileAdaptor
	Namer Namer
}
