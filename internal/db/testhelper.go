package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a migrated metastore in t.TempDir() and closes it when
// the test ends.
func OpenTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenMetastore(filepath.Join(t.TempDir(), "meta.sqlite"))
	if err != nil {
		t.Fatalf("open test metastore: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
