package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationManager applies the fact store schema. Aggregate tables are not
// part of it: the refresh engine creates and replaces them at runtime.
type MigrationManager struct {
	m *migrate.Migrate
}

// MigrationStatus describes the schema version of a database file.
type MigrationStatus struct {
	Version uint
	Dirty   bool
	// Applied is false when no migration has ever run.
	Applied bool
}

func (s MigrationStatus) String() string {
	switch {
	case !s.Applied:
		return "no migrations applied"
	case s.Dirty:
		return fmt.Sprintf("version %d (dirty - migration failed or interrupted)", s.Version)
	default:
		return fmt.Sprintf("version %d", s.Version)
	}
}

// NewMigrationManager opens the SQLite file at dbPath for migration.
func NewMigrationManager(dbPath string) (*MigrationManager, error) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, sqliteURL(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return &MigrationManager{m: m}, nil
}

// SetLogger routes migration progress messages to logger.
func (mm *MigrationManager) SetLogger(logger *slog.Logger) {
	mm.m.Log = migrateLogger{logger}
}

// sqliteURL turns a file path into a sqlite:// URL, including Windows
// drive-letter paths.
func sqliteURL(path string) string {
	p := filepath.ToSlash(path)
	if filepath.IsAbs(path) && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "sqlite://" + p
}

// Up applies all pending migrations.
func (mm *MigrationManager) Up() error {
	return ignoreNoChange(mm.m.Up(), "apply migrations")
}

// Down rolls back every migration.
func (mm *MigrationManager) Down() error {
	return ignoreNoChange(mm.m.Down(), "roll back migrations")
}

// Steps applies n migrations forward, or rolls back -n when n is negative.
func (mm *MigrationManager) Steps(n int) error {
	if n == 0 {
		return nil
	}
	return ignoreNoChange(mm.m.Steps(n), fmt.Sprintf("migrate %+d steps", n))
}

// Status reports the current schema version.
func (mm *MigrationManager) Status() (MigrationStatus, error) {
	v, dirty, err := mm.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return MigrationStatus{}, nil
	case err != nil:
		return MigrationStatus{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return MigrationStatus{Version: v, Dirty: dirty, Applied: true}, nil
}

// Version returns the current migration version and dirty state. It is zero
// before any migration has run.
func (mm *MigrationManager) Version() (uint, bool, error) {
	s, err := mm.Status()
	return s.Version, s.Dirty, err
}

// Close releases the source and database handles.
func (mm *MigrationManager) Close() error {
	srcErr, dbErr := mm.m.Close()
	return errors.Join(srcErr, dbErr)
}

// migrateUp brings the file at path to the latest schema.
func migrateUp(path string) (err error) {
	mm, err := NewMigrationManager(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, mm.Close())
	}()
	return mm.Up()
}

func ignoreNoChange(err error, op string) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// migrateLogger adapts slog to the migrate.Logger interface.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
