package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB opens a migrated in-memory database named after the test, so
// parallel tests never share state.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewMemoryDB(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db.Writer))
	return db
}
