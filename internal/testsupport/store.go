package testsupport

import (
	"testing"

	"genstudio/internal/config"
	"genstudio/internal/history"
)

// MustOpenHistory opens the generation ledger for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
