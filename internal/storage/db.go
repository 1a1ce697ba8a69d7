// Package storage provides access to the fact store: the SQLite database holding
// decks, matches, competitions and the dimension tables they reference.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB is an open fact store.
type DB struct {
	conn *sql.DB
	path string
}

// Config describes how to open the fact store.
type Config struct {
	// Path of the SQLite file. In-memory databases are not supported.
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// BusyTimeout bounds how long a writer waits for the lock. Rebuilds hold
	// it for a whole shadow build, so ingestion queues behind them.
	BusyTimeout time.Duration

	// JournalMode must be WAL for readers to keep using the live aggregate
	// tables while a rebuild is open.
	JournalMode string
	Synchronous string

	// AutoMigrate applies pending fact store migrations before connecting.
	AutoMigrate bool
}

// DefaultConfig returns the settings used by the CLI and the server.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:            path,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		BusyTimeout:     30 * time.Second,
		JournalMode:     "WAL",
		Synchronous:     "NORMAL",
	}
}

// DSN builds the modernc.org/sqlite data source name. Foreign keys are always
// on and transactions take the write lock immediately, so concurrent
// rebuilds queue on the busy timeout instead of failing on lock upgrade.
func (c *Config) DSN() string {
	pragmas := []string{
		fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()),
		fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)),
		fmt.Sprintf("synchronous(%s)", strings.ToUpper(c.Synchronous)),
		"foreign_keys(1)",
	}
	q := url.Values{"_pragma": pragmas, "_txlock": {"immediate"}}
	return "file:" + c.Path + "?" + q.Encode()
}

func (c *Config) validate() error {
	switch c.Path {
	case "", ":memory:":
		// Each pooled connection would get its own private database and
		// the shadow table swap would be invisible to readers.
		return errors.New("a file-backed database path is required")
	}
	return nil
}

// Open connects to the fact store, creating its directory and applying
// migrations first when configured to.
func Open(config *Config) (*DB, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if config.AutoMigrate {
		if err := migrateUp(config.Path); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(config.MaxOpenConns)
	conn.SetMaxIdleConns(config.MaxIdleConns)
	conn.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := conn.Ping(); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to ping database: %w", err), conn.Close())
	}
	return &DB{conn: conn, path: config.Path}, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn returns the underlying pool.
func (db *DB) Conn() *sql.DB { return db.conn }

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

func (db *DB) Ping() error { return db.conn.Ping() }
