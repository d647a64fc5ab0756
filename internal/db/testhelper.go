package db

import (
	"path/filepath"
	"testing"
)

// OpenTestLedger opens a migrated ledger in t.TempDir() and registers cleanup.
func OpenTestLedger(t *testing.T) *Ledger {
	t.Helper()

	l, err := OpenLedger(filepath.Join(t.TempDir(), "ancine_runs.sqlite"))
	if err != nil {
		t.Fatalf("open test ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}
