// Package storagetest builds migrated fact stores for tests.
package storagetest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckstats/internal/storage"
	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// NewService creates a storage service over a migrated database file in a
// temporary directory. The database is closed when the test ends.
func NewService(t testing.TB) *storage.Service {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	config := storage.DefaultConfig(dbPath)
	config.AutoMigrate = true

	db, err := storage.Open(config)
	require.NoError(t, err, "failed to open test database")

	t.Cleanup(func() {
		_ = db.Close()
	})
	return storage.NewService(db)
}

// Fixture writes fact rows for tests and fails the test on any error.
type Fixture struct {
	t   testing.TB
	ctx context.Context
	Svc *storage.Service

	clock  time.Time
	people int
}

// NewFixture creates a Fixture over a fresh fact store.
func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	return &Fixture{
		t:     t,
		ctx:   context.Background(),
		Svc:   NewService(t),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Season creates a season starting at start.
func (f *Fixture) Season(code string, start time.Time) int64 {
	f.t.Helper()
	s := &models.Season{Code: code, StartDate: start}
	require.NoError(f.t, f.Svc.Seasons().Create(f.ctx, s))
	return s.ID
}

// Archetype creates an archetype.
func (f *Fixture) Archetype(name string) int64 {
	f.t.Helper()
	a := &models.Archetype{Name: name}
	require.NoError(f.t, f.Svc.Archetypes().Create(f.ctx, a))
	return a.ID
}

// Person creates a person.
func (f *Fixture) Person(username string) int64 {
	f.t.Helper()
	p := &models.Person{MTGOUsername: username}
	require.NoError(f.t, f.Svc.People().Create(f.ctx, p))
	return p.ID
}

// Competition creates a competition of the given type.
func (f *Fixture) Competition(name, competitionType string) int64 {
	f.t.Helper()
	c := &models.Competition{
		Name:      name,
		Type:      competitionType,
		StartDate: f.clock,
		EndDate:   f.clock.Add(7 * 24 * time.Hour),
	}
	require.NoError(f.t, f.Svc.Competitions().Create(f.ctx, c))
	return c.ID
}

// DeckSpec describes a deck to create. Zero values get defaults.
type DeckSpec struct {
	Name          string
	PersonID      int64
	Source        string
	CompetitionID int64
	ArchetypeID   int64
	Finish        int
	Created       time.Time
	Maindeck      []string
	Sideboard     []string
}

// Deck creates a deck. Decks without an explicit creation time are created
// one minute apart starting at 2024-01-01.
func (f *Fixture) Deck(spec DeckSpec) int64 {
	f.t.Helper()

	if spec.PersonID == 0 {
		f.people++
		spec.PersonID = f.Person(fmt.Sprintf("player%d", f.people))
	}
	if spec.Created.IsZero() {
		f.clock = f.clock.Add(time.Minute)
		spec.Created = f.clock
	}
	d := &models.Deck{
		Name:        spec.Name,
		PersonID:    spec.PersonID,
		Source:      spec.Source,
		CreatedDate: spec.Created,
	}
	if spec.CompetitionID != 0 {
		id := spec.CompetitionID
		d.CompetitionID = &id
	}
	if spec.ArchetypeID != 0 {
		id := spec.ArchetypeID
		d.ArchetypeID = &id
	}
	if spec.Finish != 0 {
		finish := spec.Finish
		d.Finish = &finish
	}
	for _, c := range spec.Maindeck {
		d.Cards = append(d.Cards, models.DeckCard{Name: c, N: 4})
	}
	for _, c := range spec.Sideboard {
		d.Cards = append(d.Cards, models.DeckCard{Name: c, N: 1, Sideboard: true})
	}
	require.NoError(f.t, f.Svc.Decks().Create(f.ctx, d))
	return d.ID
}

// Match records a match between two decks with the given game wins.
func (f *Fixture) Match(deckID int64, games int, opponentID int64, opponentGames int) {
	f.t.Helper()
	_, err := f.Svc.Matches().Record(f.ctx, &models.MatchResult{
		Date:           f.clock,
		DeckID:         deckID,
		Games:          games,
		OpponentDeckID: &opponentID,
		OpponentGames:  opponentGames,
	})
	require.NoError(f.t, err)
}

// Bye records a match the deck won without an opponent.
func (f *Fixture) Bye(deckID int64) {
	f.t.Helper()
	_, err := f.Svc.Matches().Record(f.ctx, &models.MatchResult{
		Date:   f.clock,
		DeckID: deckID,
		Games:  2,
	})
	require.NoError(f.t, err)
}

// Exec runs a raw statement against the fact store.
func (f *Fixture) Exec(query string, args ...any) {
	f.t.Helper()
	_, err := f.Svc.DB().Conn().ExecContext(f.ctx, query, args...)
	require.NoError(f.t, err)
}
