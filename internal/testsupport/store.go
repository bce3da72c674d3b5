package testsupport

import (
	"context"
	"testing"

	"folio/internal/comic"
	"folio/internal/config"
	"folio/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewComic saves a record for filename in the given state.
func NewComic(t testing.TB, st *store.Store, filename string, state comic.State) *comic.Record {
	t.Helper()

	record := comic.NewRecord(filename)
	record.State = state
	if err := st.Save(context.Background(), record); err != nil {
		t.Fatalf("store.Save: %v", err)
	}
	return record
}
