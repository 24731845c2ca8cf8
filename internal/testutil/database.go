package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/coral-mesh/stackprof/internal/duckdb"
)

// NewTestDB opens a DuckDB database in a temporary directory. It is closed
// when the test completes.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := duckdb.Open(filepath.Join(t.TempDir(), "test.duckdb"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}
