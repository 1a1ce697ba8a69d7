package storage

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("test.db")

	assert.Equal(t, "test.db", config.Path)
	assert.Equal(t, 25, config.MaxOpenConns)
	assert.Equal(t, 5, config.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, config.ConnMaxLifetime)
	assert.Equal(t, 30*time.Second, config.BusyTimeout)
	assert.Equal(t, "WAL", config.JournalMode)
	assert.Equal(t, "NORMAL", config.Synchronous)
	assert.False(t, config.AutoMigrate)
}

func TestConfig_DSN(t *testing.T) {
	config := DefaultConfig("/tmp/facts.db")
	config.BusyTimeout = 2 * time.Second
	config.JournalMode = "wal"

	dsn := config.DSN()
	require.True(t, strings.HasPrefix(dsn, "file:/tmp/facts.db?"), dsn)
	for _, want := range []string{
		"busy_timeout%282000%29",
		"journal_mode%28WAL%29",
		"synchronous%28NORMAL%29",
		"foreign_keys%281%29",
		"_txlock=immediate",
	} {
		assert.Contains(t, dsn, want)
	}
}

func TestOpen_RequiresFilePath(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)

	_, err = Open(DefaultConfig(""))
	assert.Error(t, err)

	_, err = Open(DefaultConfig(":memory:"))
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "facts.db")
	db, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.NoError(t, db.Ping())
	assert.NotNil(t, db.Conn())
	assert.Equal(t, path, db.Path())

	var foreignKeys int
	require.NoError(t, db.Conn().QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	var journalMode string
	require.NoError(t, db.Conn().QueryRow(`PRAGMA journal_mode`).Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestClose(t *testing.T) {
	db, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "facts.db")))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(), "ping should fail after close")
}
