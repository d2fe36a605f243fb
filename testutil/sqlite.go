package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub020/infra/sqlite"
)

// OpenSQLite opens a fresh SQLite event database in a temporary directory and
// closes it when the test ends.
func OpenSQLite(t testing.TB) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "hendelse.db"))
	require.NoError(t, err, "failed to open sqlite database")
	t.Cleanup(func() { _ = db.Close() })
	return db
}
