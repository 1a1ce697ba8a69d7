package aggregate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckstats/internal/metrics"
	"github.com/ramonehamilton/deckstats/internal/storage/models"
	"github.com/ramonehamilton/deckstats/internal/storage/storagetest"
)

var season2023 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	*storagetest.Fixture
	db      *sql.DB
	engine  *Engine
	metrics *metrics.RefreshMetrics
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	f := storagetest.NewFixture(t)
	m := metrics.NewRefreshMetrics()
	engine, err := NewEngine(EngineConfig{DB: f.Svc.DB().Conn(), Metrics: m})
	require.NoError(t, err)
	return &testEnv{Fixture: f, db: f.Svc.DB().Conn(), engine: engine, metrics: m}
}

// seedScenario writes ten archetyped decks: four Control decks, three of
// which play Foo, and six Aggro decks, two of which play Foo.
func (e *testEnv) seedScenario() (control, aggro int64) {
	e.Season("S1", season2023)
	control = e.Archetype("Control")
	aggro = e.Archetype("Aggro")
	league := e.Competition("League 1", models.CompetitionTypeLeague)

	var decks []int64
	for i := 0; i < 4; i++ {
		main := []string{"Island"}
		if i < 3 {
			main = append(main, "Foo")
		}
		decks = append(decks, e.Deck(storagetest.DeckSpec{ArchetypeID: control, CompetitionID: league, Maindeck: main}))
	}
	for i := 0; i < 6; i++ {
		main := []string{"Mountain"}
		if i < 2 {
			main = append(main, "Foo")
		}
		decks = append(decks, e.Deck(storagetest.DeckSpec{ArchetypeID: aggro, CompetitionID: league, Maindeck: main}))
	}
	e.Match(decks[0], 2, decks[4], 1)
	e.Match(decks[1], 1, decks[5], 2)
	return control, aggro
}

// dump renders every row of a table, sorted.
func dump(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), fmt.Sprintf("SELECT * FROM %q", table))
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)

	var out []string
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprint(v)
		}
		out = append(out, strings.Join(parts, "|"))
	}
	require.NoError(t, rows.Err())
	sort.Strings(out)
	return out
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&n))
	return n
}
