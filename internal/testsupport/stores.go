package testsupport

import (
	"testing"
	"time"

	"baton/internal/config"
	"baton/internal/fileutil"
	"baton/internal/ledger"
	"baton/internal/logging"
	"baton/internal/retry"
)

// FastPolicy is a retry policy with millisecond backoff.
func FastPolicy() retry.Policy {
	p := retry.Lean
	p.InitialDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond
	return p
}

// NewFileStore returns a file store that retries quickly and logs nothing.
func NewFileStore(t testing.TB) *fileutil.Store {
	t.Helper()
	return fileutil.New(FastPolicy(), logging.NewNop(), 5*time.Second)
}

// MustOpenLedger opens the config's ledger and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
