package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var factTables = []string{
	"season", "archetype", "person", "person_alias", "source", "competition_type",
	"competition", "deck", "deck_card", "match", "deck_match", "card",
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.Conn().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n))
	return n == 1
}

func TestMigrationManager_Up(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migration-test.db")

	mgr, err := NewMigrationManager(dbPath)
	require.NoError(t, err)
	require.NoError(t, mgr.Up())
	require.NoError(t, mgr.Up(), "second Up should be a no-op")

	version, dirty, err := mgr.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
	require.NoError(t, mgr.Close())

	db, err := Open(DefaultConfig(dbPath))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, table := range factTables {
		assert.True(t, tableExists(t, db, table), "table %s should exist", table)
	}

	var sources, competitionTypes int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM source`).Scan(&sources))
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM competition_type`).Scan(&competitionTypes))
	assert.Equal(t, 5, sources)
	assert.Equal(t, 2, competitionTypes)
}

func TestMigrationManager_VersionBeforeUp(t *testing.T) {
	mgr, err := NewMigrationManager(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer func() { _ = mgr.Close() }()

	version, dirty, err := mgr.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestMigrationManager_StepsAndStatus(t *testing.T) {
	mgr, err := NewMigrationManager(filepath.Join(t.TempDir(), "steps.db"))
	require.NoError(t, err)
	defer func() { _ = mgr.Close() }()

	status, err := mgr.Status()
	require.NoError(t, err)
	assert.False(t, status.Applied)
	assert.Equal(t, "no migrations applied", status.String())

	require.NoError(t, mgr.Steps(1))
	require.NoError(t, mgr.Steps(0))
	status, err = mgr.Status()
	require.NoError(t, err)
	assert.Equal(t, MigrationStatus{Version: 1, Applied: true}, status)
	assert.Equal(t, "version 1", status.String())

	require.NoError(t, mgr.Steps(-1))
	status, err = mgr.Status()
	require.NoError(t, err)
	assert.False(t, status.Applied)

	assert.Equal(t, "version 3 (dirty - migration failed or interrupted)",
		MigrationStatus{Version: 3, Dirty: true, Applied: true}.String())
}

func TestSqliteURL(t *testing.T) {
	assert.Equal(t, "sqlite:///tmp/facts.db", sqliteURL("/tmp/facts.db"))
	assert.Equal(t, "sqlite://facts.db", sqliteURL("facts.db"))
}

func TestMigrationManager_Down(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migration-down-test.db")

	mgr, err := NewMigrationManager(dbPath)
	require.NoError(t, err)
	require.NoError(t, mgr.Up())
	require.NoError(t, mgr.Down())
	require.NoError(t, mgr.Close())

	db, err := Open(DefaultConfig(dbPath))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, table := range factTables {
		assert.False(t, tableExists(t, db, table), "table %s should be dropped", table)
	}
}

func TestOpen_AutoMigrate(t *testing.T) {
	config := DefaultConfig(filepath.Join(t.TempDir(), "auto.db"))
	config.AutoMigrate = true

	db, err := Open(config)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.True(t, tableExists(t, db, "deck"))
	assert.False(t, tableExists(t, db, "_card_stats"), "aggregate tables are built at runtime, not migrated")
}
