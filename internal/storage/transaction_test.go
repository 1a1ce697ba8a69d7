package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMigrated(t *testing.T) *DB {
	t.Helper()
	config := DefaultConfig(filepath.Join(t.TempDir(), "tx.db"))
	config.AutoMigrate = true
	db, err := Open(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countArchetypes(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM archetype`).Scan(&n))
	return n
}

func TestWithTransaction_Commits(t *testing.T) {
	db := openMigrated(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO archetype (name) VALUES ('Control')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countArchetypes(t, db))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := openMigrated(t)
	boom := errors.New("boom")

	err := db.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO archetype (name) VALUES ('Control')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countArchetypes(t, db))
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	db := openMigrated(t)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = db.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO archetype (name) VALUES ('Control')`)
			panic("kaboom")
		})
	})
	assert.Equal(t, 0, countArchetypes(t, db))
}
