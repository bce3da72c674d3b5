package comic_test

import (
	"testing"

	"folio/internal/comic"
)

func TestParseStateIsCaseInsensitive(t *testing.T) {
	state, err := comic.ParseState("UNPROCESSED")
	if err != nil {
		t.Fatalf("ParseState returned error: %v", err)
	}
	if state != comic.StateUnprocessed {
		t.Fatalf("unexpected state %q", state)
	}
	if _, err := comic.ParseState("archived"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestParseEventResolvesCanonicalName(t *testing.T) {
	event, err := comic.ParseEvent("contentsloaded")
	if err != nil {
		t.Fatalf("ParseEvent returned error: %v", err)
	}
	if event != comic.EventContentsLoaded {
		t.Fatalf("unexpected event %q", event)
	}
	if !comic.EventMarkMissing.Valid() {
		t.Fatal("expected markMissing to be valid")
	}
	if comic.Event("markmissing").Valid() {
		t.Fatal("expected non-canonical spelling to be invalid")
	}
}

func TestOnlyRemovedIsTerminal(t *testing.T) {
	for _, state := range comic.AllStates() {
		if got, want := state.Terminal(), state == comic.StateRemoved; got != want {
			t.Fatalf("state %s terminal=%v, want %v", state, got, want)
		}
	}
}

func TestNewRecordStartsCreated(t *testing.T) {
	record := comic.NewRecord("/library/Saga 001.CBZ")
	if record.State != comic.StateCreated {
		t.Fatalf("unexpected state %q", record.State)
	}
	if record.ArchiveType != comic.ArchiveCBZ {
		t.Fatalf("unexpected archive type %q", record.ArchiveType)
	}
}

func TestCloneIsDeep(t *testing.T) {
	record := &comic.Record{ID: 1, FileDetails: &comic.FileDetails{Size: 10, Hash: "abc"}}
	clone := record.Clone()
	clone.FileDetails.Size = 99
	clone.Missing = true
	if record.FileDetails.Size != 10 || record.Missing {
		t.Fatalf("clone mutated original: %+v", record)
	}
}

func TestResetProcessingClearsDerivedState(t *testing.T) {
	record := &comic.Record{
		ContentsLoaded:     true,
		BlockedPagesMarked: true,
		BlockedPages:       2,
		Recreating:         true,
		FileDetails:        &comic.FileDetails{Size: 1},
		Series:             "Saga",
	}
	record.ResetProcessing()
	if record.ContentsLoaded || record.BlockedPagesMarked || record.BlockedPages != 0 || record.Recreating || record.FileDetails != nil {
		t.Fatalf("processing state not reset: %+v", record)
	}
	if record.Series != "Saga" {
		t.Fatal("expected metadata to survive reset")
	}
}

func TestCriteriaMatches(t *testing.T) {
	loaded := &comic.Record{State: comic.StateUnprocessed, ContentsLoaded: true}
	missing := &comic.Record{State: comic.StateStable, Missing: true}

	tests := []struct {
		name     string
		criteria comic.Criteria
		record   *comic.Record
		want     bool
	}{
		{"all", comic.All(), missing, true},
		{"state hit", comic.InStates(comic.StateStable, comic.StateChanged), missing, true},
		{"state miss", comic.InStates(comic.StateCreated), loaded, false},
		{"flag", comic.FlagIs(comic.FlagContentsLoaded, true), loaded, true},
		{"and", comic.And(comic.InStates(comic.StateUnprocessed), comic.FlagIs(comic.FlagMissing, false)), loaded, true},
		{"and miss", comic.And(comic.InStates(comic.StateStable), comic.FlagIs(comic.FlagMissing, false)), missing, false},
		{"or", comic.Or(comic.InStates(comic.StateDeleted), comic.FlagIs(comic.FlagMissing, true)), missing, true},
		{"not", comic.Not(comic.InStates(comic.StateRemoved)), loaded, true},
		{"empty and", comic.And(), loaded, true},
		{"empty or", comic.Or(), loaded, false},
		{"unknown kind", comic.Criteria{Kind: comic.CriteriaKind(42)}, loaded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.criteria.Matches(tt.record); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCriteriaValidate(t *testing.T) {
	if err := comic.And(comic.InStates(comic.StateStable), comic.Not(comic.FlagIs(comic.FlagMissing, true))).Validate(); err != nil {
		t.Fatalf("expected valid criteria, got %v", err)
	}
	invalid := []comic.Criteria{
		comic.InStates(),
		comic.InStates("archived"),
		comic.FlagIs("shiny", true),
		{Kind: comic.CriteriaNot},
		{Kind: comic.CriteriaKind(42)},
	}
	for _, c := range invalid {
		if err := c.Validate(); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}
