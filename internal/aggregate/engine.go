package aggregate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
	"github.com/ramonehamilton/deckstats/internal/metrics"
	"github.com/ramonehamilton/deckstats/internal/storage"
)

// shadowPrefix names the scratch table a rebuild fills before the swap.
const shadowPrefix = "_new"

// EngineConfig configures the rebuild engine.
type EngineConfig struct {
	DB       *sql.DB
	Registry *Registry
	Logger   *slog.Logger
	Metrics  *metrics.RefreshMetrics
}

// Engine rebuilds aggregate tables. It is the only writer of aggregate tables.
type Engine struct {
	db       *sql.DB
	registry *Registry
	logger   *slog.Logger
	metrics  *metrics.RefreshMetrics

	// One mutex per table name; at most one rebuild of a table runs at a time.
	locks *xsync.Map[string, *sync.Mutex]
}

// TableResult reports a successful table rebuild.
type TableResult struct {
	Table    string        `json:"table"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration"`
}

// FamilyResult reports a family rebuild. On failure Tables lists the
// members swapped in before the failure.
type FamilyResult struct {
	Family   string         `json:"family"`
	RunID    string         `json:"run_id"`
	Tables   []*TableResult `json:"tables"`
	Duration time.Duration  `json:"duration"`
}

// NewEngine creates a rebuild engine.
func NewEngine(config EngineConfig) (*Engine, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("db is required")
	}
	if config.Registry == nil {
		config.Registry = DefaultRegistry()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NewRefreshMetrics()
	}

	return &Engine{
		db:       config.DB,
		registry: config.Registry,
		logger:   config.Logger,
		metrics:  config.Metrics,
		locks:    xsync.NewMap[string, *sync.Mutex](),
	}, nil
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Metrics returns the engine's metrics collector.
func (e *Engine) Metrics() *metrics.RefreshMetrics {
	return e.metrics
}

// Rebuild recomputes one aggregate table from scratch and swaps it in.
// name may be the logical name or the table name.
func (e *Engine) Rebuild(ctx context.Context, name string) (*TableResult, error) {
	def, err := e.registry.Definition(name)
	if err != nil {
		return nil, err
	}
	return e.rebuild(ctx, def, uuid.NewString())
}

// RebuildFamily rebuilds every member of a family in dependency order. The
// first failure aborts the rest of the family; members already swapped in
// stay live and the error is a *FamilyError.
func (e *Engine) RebuildFamily(ctx context.Context, family string) (*FamilyResult, error) {
	order, err := e.registry.RebuildOrder(family)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &FamilyResult{Family: family, RunID: uuid.NewString()}
	logger := e.logger.With("family", family, "runID", result.RunID)
	logger.Info("Rebuilding aggregate family", "tables", len(order))

	for _, def := range order {
		tr, err := e.rebuild(ctx, def, result.RunID)
		if err != nil {
			rebuilt := make([]string, len(result.Tables))
			for i, t := range result.Tables {
				rebuilt[i] = t.Table
			}
			result.Duration = time.Since(start)
			logger.Error("Aggregate family rebuild aborted",
				"failed", def.Table,
				"rebuilt", len(rebuilt),
				"error", err)
			return result, &FamilyError{Family: family, Failed: def.Table, Rebuilt: rebuilt, Err: err}
		}
		result.Tables = append(result.Tables, tr)
	}

	result.Duration = time.Since(start)
	e.metrics.RecordFamilyRebuild(result.Duration)
	logger.Info("Aggregate family rebuilt", "duration", result.Duration)
	return result, nil
}

func (e *Engine) lockFor(table string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(table, &sync.Mutex{})
	return mu
}

func (e *Engine) rebuild(ctx context.Context, def *Definition, runID string) (*TableResult, error) {
	mu := e.lockFor(def.Table)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	rows, err := e.swapIn(ctx, def)
	if err != nil {
		e.metrics.IncrementRebuildFailures()
		e.logger.Error("Aggregate rebuild failed", "table", def.Table, "runID", runID, "error", err)
		return nil, err
	}

	result := &TableResult{Table: def.Table, Rows: rows, Duration: time.Since(start)}
	e.metrics.RecordTableRebuild(def.Table, result.Duration)
	e.logger.Debug("Aggregate rebuilt",
		"table", def.Table,
		"runID", runID,
		"rows", rows,
		"duration", result.Duration)
	return result, nil
}

// swapIn builds the shadow table and replaces the live table with it inside
// one write transaction. Readers on other connections keep their snapshot
// of the old table until the commit and see the new one after it.
func (e *Engine) swapIn(ctx context.Context, def *Definition) (int64, error) {
	live := def.Table
	shadow := shadowPrefix + def.Table
	fail := func(phase Phase, err error) (int64, error) {
		return 0, &RefreshError{Table: live, Phase: phase, Err: err}
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(PhaseBuild, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+query.Ident(shadow)); err != nil {
		return fail(PhaseBuild, fmt.Errorf("failed to drop stale shadow table: %w", err))
	}
	if _, err := tx.ExecContext(ctx, def.Schema.createTableSQL(shadow)); err != nil {
		return fail(PhaseBuild, fmt.Errorf("failed to create shadow table: %w", err))
	}

	insert := "INSERT INTO " + query.Ident(shadow) + " (" + quoteAll(def.Schema.ColumnNames()) + ")\n" + def.Query
	res, err := tx.ExecContext(ctx, insert)
	if err != nil {
		return fail(PhaseBuild, fmt.Errorf("failed to fill shadow table: %w", err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fail(PhaseBuild, fmt.Errorf("failed to count shadow rows: %w", err))
	}

	if err := validateShadow(ctx, tx, shadow, def.Schema); err != nil {
		return fail(PhaseValidate, err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+query.Ident(live)); err != nil {
		return fail(PhaseSwap, fmt.Errorf("failed to drop live table: %w", err))
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE "+query.Ident(shadow)+" RENAME TO "+query.Ident(live)); err != nil {
		return fail(PhaseSwap, fmt.Errorf("failed to rename shadow table: %w", err))
	}
	// Indexes are created after the rename so their names follow the live table.
	for _, stmt := range def.Schema.createIndexSQL(live) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fail(PhaseSwap, fmt.Errorf("failed to create index: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(PhaseSwap, fmt.Errorf("failed to commit: %w", err))
	}
	return rows, nil
}

// validateShadow compares the shadow table's catalogue entry with the
// registered schema and rejects rows with dangling foreign keys.
func validateShadow(ctx context.Context, tx *sql.Tx, shadow string, schema Schema) error {
	rows, err := tx.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, shadow)
	if err != nil {
		return fmt.Errorf("failed to read table info: %w", err)
	}
	type columnInfo struct {
		name    string
		typ     string
		notNull bool
		pk      int
	}
	var got []columnInfo
	for rows.Next() {
		var c columnInfo
		if err := rows.Scan(&c.name, &c.typ, &c.notNull, &c.pk); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan table info: %w", err)
		}
		got = append(got, c)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	if len(got) != len(schema.Columns) {
		return fmt.Errorf("shadow has %d columns, schema declares %d", len(got), len(schema.Columns))
	}
	pkPos := make(map[string]int, len(schema.PrimaryKey))
	for i, name := range schema.PrimaryKey {
		pkPos[name] = i + 1
	}
	for i, want := range schema.Columns {
		c := got[i]
		if c.name != want.Name {
			return fmt.Errorf("column %d is %s, schema declares %s", i, c.name, want.Name)
		}
		if !strings.EqualFold(c.typ, string(want.Type)) {
			return fmt.Errorf("column %s has type %s, schema declares %s", c.name, c.typ, want.Type)
		}
		if c.notNull != want.NotNull {
			return fmt.Errorf("column %s nullability differs from schema", c.name)
		}
		if c.pk != pkPos[c.name] {
			return fmt.Errorf("column %s primary key position %d, schema declares %d", c.name, c.pk, pkPos[c.name])
		}
	}

	fkRows, err := tx.QueryContext(ctx, `SELECT "table", "from", "to" FROM pragma_foreign_key_list(?)`, shadow)
	if err != nil {
		return fmt.Errorf("failed to read foreign keys: %w", err)
	}
	gotFKs := make(map[ForeignKey]bool)
	for fkRows.Next() {
		var fk ForeignKey
		if err := fkRows.Scan(&fk.RefTable, &fk.Column, &fk.RefColumn); err != nil {
			fkRows.Close()
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		gotFKs[fk] = true
	}
	if err := fkRows.Close(); err != nil {
		return err
	}
	if len(gotFKs) != len(schema.ForeignKeys) {
		return fmt.Errorf("shadow has %d foreign keys, schema declares %d", len(gotFKs), len(schema.ForeignKeys))
	}
	for _, fk := range schema.ForeignKeys {
		if !gotFKs[fk] {
			return fmt.Errorf("foreign key %s -> %s(%s) missing", fk.Column, fk.RefTable, fk.RefColumn)
		}
	}

	var violations int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pragma_foreign_key_check(?)`, shadow).Scan(&violations); err != nil {
		return fmt.Errorf("failed to check foreign keys: %w", err)
	}
	if violations > 0 {
		return fmt.Errorf("%d rows violate foreign key constraints", violations)
	}
	return nil
}

// Exists reports whether an aggregate table is present.
func (e *Engine) Exists(ctx context.Context, table string) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to probe table %s: %w", table, err)
	}
	return n > 0, nil
}

// MissingTables returns the members of a family that are not present.
func (e *Engine) MissingTables(ctx context.Context, family string) ([]string, error) {
	f, err := e.registry.Family(family)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(f.Members))
	rows, err := e.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE '\_%' ESCAPE '\'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregate tables: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, m := range f.Members {
		if !present[m] {
			missing = append(missing, m)
		}
	}
	return missing, nil
}

// Drop removes aggregate tables in one transaction. Unknown names are rejected.
func (e *Engine) Drop(ctx context.Context, tables ...string) error {
	for _, t := range tables {
		if _, err := e.registry.Definition(t); err != nil {
			return err
		}
	}

	err := storage.RunInTx(ctx, e.db, func(ctx context.Context, tx *sql.Tx) error {
		for _, t := range tables {
			def, _ := e.registry.Definition(t)
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+query.Ident(def.Table)); err != nil {
				return fmt.Errorf("failed to drop %s: %w", def.Table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("Dropped aggregate tables", "tables", tables)
	return nil
}
