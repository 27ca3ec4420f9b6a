package repository

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two approvals racing on InnoDB deadlock unless the decision row is
// locked before the response insert.  sql.Open does not dial, so the
// MySQL handle needs no server.
func TestNewDecisionRepo_RowLock(t *testing.T) {
	t.Run("Should lock status reads on MySQL", func(t *testing.T) {
		db, err := sql.Open("mysql", "user:pass@tcp(127.0.0.1:3306)/decisions")
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		assert.Equal(t, " FOR UPDATE", NewDecisionRepo(db).lockRow)
	})
	t.Run("Should not lock on SQLite", func(t *testing.T) {
		db, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		assert.Empty(t, NewDecisionRepo(db).lockRow)
	})
}
