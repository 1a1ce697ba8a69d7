package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
	"github.com/ramonehamilton/deckstats/internal/storage/storagetest"
)

func TestRecordLeagueRun(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()

	deck := f.Deck(storagetest.DeckSpec{Source: models.SourceLeague, Maindeck: []string{"Island"}})
	var results []*models.MatchResult
	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		opp := f.Deck(storagetest.DeckSpec{Maindeck: []string{"Mountain"}})
		results = append(results, &models.MatchResult{
			Date:           date.Add(time.Duration(i) * time.Hour),
			DeckID:         deck,
			Games:          2,
			OpponentDeckID: &opp,
			OpponentGames:  1,
		})
	}
	results = append(results, &models.MatchResult{Date: date.Add(5 * time.Hour), DeckID: deck, Games: 2})

	require.NoError(t, f.Svc.RecordLeagueRun(ctx, deck, results))

	n, err := f.Svc.Matches().CountForDeck(ctx, deck)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestRecordLeagueRun_RejectsForeignResult(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()

	deck := f.Deck(storagetest.DeckSpec{Maindeck: []string{"Island"}})
	other := f.Deck(storagetest.DeckSpec{Maindeck: []string{"Mountain"}})

	err := f.Svc.RecordLeagueRun(ctx, deck, []*models.MatchResult{
		{Date: time.Now(), DeckID: deck, Games: 2},
		{Date: time.Now(), DeckID: other, Games: 2},
	})
	require.Error(t, err)

	n, err := f.Svc.Matches().CountForDeck(ctx, deck)
	require.NoError(t, err)
	assert.Zero(t, n, "the whole run should be rolled back")
}
