package testsupport

import (
	"testing"

	"vigil/internal/config"
	"vigil/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
