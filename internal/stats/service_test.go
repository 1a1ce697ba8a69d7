package stats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
	"github.com/ramonehamilton/deckstats/internal/storage/models"
	"github.com/ramonehamilton/deckstats/internal/storage/storagetest"
)

var season2023 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	cards map[string]*models.Card
	err   error
}

func (f *fakeCatalog) CardsByName(ctx context.Context) (map[string]*models.Card, error) {
	return f.cards, f.err
}

type testEnv struct {
	*storagetest.Fixture
	svc     *Service
	loader  *aggregate.Loader
	catalog *fakeCatalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	f := storagetest.NewFixture(t)
	db := f.Svc.DB().Conn()

	engine, err := aggregate.NewEngine(aggregate.EngineConfig{DB: db})
	require.NoError(t, err)
	loader, err := aggregate.NewLoader(aggregate.LoaderConfig{Engine: engine})
	require.NoError(t, err)

	catalog := &fakeCatalog{cards: map[string]*models.Card{
		"Bar": {Name: "Bar", ManaCost: "{1}{R}", TypeLine: "Instant"},
	}}
	svc, err := NewService(ServiceConfig{DB: db, Loader: loader, Cards: catalog})
	require.NoError(t, err)

	f.Season("S1", season2023)
	return &testEnv{Fixture: f, svc: svc, loader: loader, catalog: catalog}
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.Error(t, err)
}

func TestLoadCards_WinsAcrossTwoDecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.Deck(storagetest.DeckSpec{Maindeck: []string{"Bar", "Island"}})
	b := env.Deck(storagetest.DeckSpec{Maindeck: []string{"Bar"}})
	for i := 0; i < 3; i++ {
		opponent := env.Deck(storagetest.DeckSpec{Maindeck: []string{"Mountain"}})
		if i < 2 {
			env.Match(a, 2, opponent, 0)
		} else {
			env.Match(b, 2, opponent, 1)
		}
	}

	cards, err := env.svc.LoadCards(ctx, CardOptions{Where: query.E("cs.name = ?", "Bar")})
	require.NoError(t, err)
	require.Len(t, cards, 1)

	bar := cards[0]
	assert.Equal(t, "Bar", bar.Name)
	assert.Equal(t, 2, bar.NumDecks)
	assert.Equal(t, 3, bar.Wins)
	assert.Equal(t, 0, bar.Losses)
	assert.Equal(t, 0, bar.Draws)
	assert.Equal(t, 3, bar.Record)
	assert.Equal(t, 0, bar.TournamentWins)
	assert.Equal(t, 0, bar.TournamentTop8s)
	pct, ok := bar.WinPercent.Value()
	require.True(t, ok)
	assert.InDelta(t, 100.0, pct, 1e-9)
	require.NotNil(t, bar.Card)
	assert.Equal(t, "{1}{R}", bar.Card.ManaCost)
}

func TestLoadCards_NoMatchesHasNoWinPercent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.Deck(storagetest.DeckSpec{Maindeck: []string{"Unplayed"}})

	cards, err := env.svc.LoadCards(ctx, CardOptions{})
	require.NoError(t, err)
	require.Len(t, cards, 1)

	assert.False(t, cards[0].WinPercent.Valid())
	assert.Equal(t, "", cards[0].WinPercent.String())
	assert.Nil(t, cards[0].Card)

	raw, err := json.Marshal(cards[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"win_percent":null`)
}

func TestLoadCards_UnknownScopeIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	archetype := env.Archetype("Control")
	env.Deck(storagetest.DeckSpec{ArchetypeID: archetype, Maindeck: []string{"Bar"}})

	cards, err := env.svc.LoadCards(ctx, CardOptions{ArchetypeID: 999})
	require.NoError(t, err)
	assert.NotNil(t, cards)
	assert.Empty(t, cards)

	cards, err = env.svc.LoadCards(ctx, CardOptions{PersonID: 999})
	require.NoError(t, err)
	assert.Empty(t, cards)

	n, err := env.svc.LoadCardsCount(ctx, CardOptions{ArchetypeID: 999})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadCards_ScopesAreExclusive(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.LoadCards(context.Background(), CardOptions{ArchetypeID: 1, PersonID: 1})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestLoadCards_RejectsUnknownSortKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.LoadCards(context.Background(), CardOptions{OrderBy: []query.Order{{Key: "name; DROP TABLE deck"}}})
	assert.ErrorIs(t, err, query.ErrInvalidSort)
}

func TestLoadCards_PartitionsAndScopes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	control := env.Archetype("Control")
	alice := env.Person("alice")
	league := env.Competition("League", models.CompetitionTypeLeague)
	tournament := env.Competition("Challenge", models.CompetitionTypeGatherling)

	run := env.Deck(storagetest.DeckSpec{
		PersonID: alice, ArchetypeID: control, CompetitionID: league,
		Source: models.SourceLeague, Maindeck: []string{"Bar"}, Sideboard: []string{"Bar"},
	})
	for i := 0; i < 5; i++ {
		opponent := env.Deck(storagetest.DeckSpec{Maindeck: []string{"Mountain"}})
		env.Match(run, 2, opponent, 0)
	}

	winner := env.Deck(storagetest.DeckSpec{
		CompetitionID: tournament, Source: models.SourceGatherling, Finish: 1,
		ArchetypeID: control, Maindeck: []string{"Bar"},
	})
	loser := env.Deck(storagetest.DeckSpec{
		CompetitionID: tournament, Source: models.SourceGatherling, Finish: 5,
		Maindeck: []string{"Bar"},
	})
	env.Match(winner, 2, loser, 1)
	env.Bye(winner)

	all, err := env.svc.LoadCard(ctx, "Bar", false, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, all.NumDecks, "maindeck and sideboard copies count once")
	assert.Equal(t, 7, all.Wins, "byes count as wins")
	assert.Equal(t, 1, all.Losses)
	assert.Equal(t, 1, all.PerfectRuns)
	assert.Equal(t, 1, all.TournamentWins)
	assert.Equal(t, 2, all.TournamentTop8s)
	pct, _ := all.WinPercent.Value()
	assert.InDelta(t, 87.5, pct, 1e-9)

	tournamentOnly, err := env.svc.LoadCard(ctx, "Bar", true, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, tournamentOnly.NumDecks)
	assert.Equal(t, 0, tournamentOnly.PerfectRuns)

	byArchetype, err := env.svc.LoadCards(ctx, CardOptions{ArchetypeID: control, Where: query.E("cs.name = ?", "Bar")})
	require.NoError(t, err)
	require.Len(t, byArchetype, 1)
	assert.Equal(t, 2, byArchetype[0].NumDecks)

	byPerson, err := env.svc.LoadCards(ctx, CardOptions{PersonID: alice, Where: query.E("cs.name = ?", "Bar")})
	require.NoError(t, err)
	require.Len(t, byPerson, 1)
	assert.Equal(t, 1, byPerson[0].NumDecks)
	assert.Equal(t, 5, byPerson[0].Record)
}

func TestLoadCards_OrderAndLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.Deck(storagetest.DeckSpec{Maindeck: []string{"Alpha", "Beta"}})
	env.Deck(storagetest.DeckSpec{Maindeck: []string{"Beta", "Gamma"}})
	env.Deck(storagetest.DeckSpec{Maindeck: []string{"Beta"}})

	cards, err := env.svc.LoadCards(ctx, CardOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "Beta", cards[0].Name)
	assert.Equal(t, "Alpha", cards[1].Name)

	cards, err = env.svc.LoadCards(ctx, CardOptions{OrderBy: []query.Order{{Key: "name", Desc: true}}})
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, "Gamma", cards[0].Name)

	n, err := env.svc.LoadCardsCount(ctx, CardOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLoadCards_SeasonFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s2 := env.Season("S2", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	env.Deck(storagetest.DeckSpec{Maindeck: []string{"Old"}})
	env.Deck(storagetest.DeckSpec{Maindeck: []string{"New"}, Created: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)})

	cards, err := env.svc.LoadCards(ctx, CardOptions{SeasonID: s2})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "New", cards[0].Name)
}

func TestLoadCard_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.Deck(storagetest.DeckSpec{Maindeck: []string{"Island"}})

	_, err := env.svc.LoadCard(ctx, "Nonexistent", false, 0)
	assert.ErrorIs(t, err, ErrCardNotFound)

	// Known to the catalogue but never played.
	bar, err := env.svc.LoadCard(ctx, "Bar", false, 0)
	require.NoError(t, err)
	assert.Zero(t, bar.NumDecks)
	assert.False(t, bar.WinPercent.Valid())
	assert.NotNil(t, bar.Card)
}

func TestLoadCards_CatalogFailure(t *testing.T) {
	env := newTestEnv(t)
	env.Deck(storagetest.DeckSpec{Maindeck: []string{"Island"}})
	env.catalog.err = errors.New("catalog down")

	_, err := env.svc.LoadCards(context.Background(), CardOptions{})
	assert.Error(t, err)
}

func TestLoadCards_RefreshFailureIsReturned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.Deck(storagetest.DeckSpec{ArchetypeID: 999, Maindeck: []string{"Island"}})

	_, err := env.svc.LoadCards(ctx, CardOptions{})
	assert.ErrorIs(t, err, aggregate.ErrRefreshFailed)
}

func TestUniqueAndTrailblazerCards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.Person("alice")
	bob := env.Person("bob")

	first := env.Deck(storagetest.DeckSpec{PersonID: alice, Maindeck: []string{"Shared", "Rare"}})
	second := env.Deck(storagetest.DeckSpec{PersonID: bob, Maindeck: []string{"Shared", "Common"}})
	// Decks without matches never make a card unique or trailblazing.
	env.Deck(storagetest.DeckSpec{PersonID: bob, Maindeck: []string{"Rare"}})
	env.Match(first, 2, second, 1)

	unique, err := env.svc.UniqueCardsPlayed(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rare"}, unique)

	unique, err = env.svc.UniqueCardsPlayed(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{"Common"}, unique)

	trailblazer, err := env.svc.TrailblazerCards(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rare", "Shared"}, trailblazer)

	trailblazer, err = env.svc.TrailblazerCards(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{"Common"}, trailblazer)

	none, err := env.svc.UniqueCardsPlayed(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}
