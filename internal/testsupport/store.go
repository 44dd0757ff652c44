package testsupport

import (
	"testing"

	"debatelens/internal/config"
	"debatelens/internal/runstore"
)

// MustOpenStore opens the run ledger for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
