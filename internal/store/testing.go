package store

import "testing"

// NewTestDB opens a migrated in-memory database that is closed when the test ends.
// This is only intended for use in tests.
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	db, err := OpenPath(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
