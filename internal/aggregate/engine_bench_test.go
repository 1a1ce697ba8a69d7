package aggregate

import (
	"context"
	"fmt"
	"testing"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
	"github.com/ramonehamilton/deckstats/internal/storage/storagetest"
)

// Run with:
//
//	go test -bench=Rebuild -benchmem ./internal/aggregate/

// seedLarge writes decks decks spread over a handful of archetypes and a
// rotating pool of cards, with a match between every consecutive pair.
func (e *testEnv) seedLarge(decks int) {
	e.Season("S1", season2023)
	league := e.Competition("League 1", models.CompetitionTypeLeague)
	archetypes := make([]int64, 6)
	for i := range archetypes {
		archetypes[i] = e.Archetype(fmt.Sprintf("Archetype %d", i))
	}

	ids := make([]int64, decks)
	for i := range ids {
		main := make([]string, 0, 15)
		for c := 0; c < 15; c++ {
			main = append(main, fmt.Sprintf("Card %03d", (i*7+c)%120))
		}
		ids[i] = e.Deck(storagetest.DeckSpec{
			ArchetypeID:   archetypes[i%len(archetypes)],
			CompetitionID: league,
			Maindeck:      main,
			Sideboard:     []string{fmt.Sprintf("Card %03d", (i+60)%120)},
		})
	}
	for i := 0; i+1 < len(ids); i += 2 {
		e.Match(ids[i], 2, ids[i+1], i%3)
	}
}

func BenchmarkRebuildFamily(b *testing.B) {
	for _, family := range []string{FamilyCard, FamilyPlayability} {
		for _, decks := range []int{100, 1000} {
			b.Run(fmt.Sprintf("%s/decks=%d", family, decks), func(b *testing.B) {
				env := newTestEnv(b)
				env.seedLarge(decks)
				ctx := context.Background()

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := env.engine.RebuildFamily(ctx, family); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkExists(b *testing.B) {
	env := newTestEnv(b)
	ctx := context.Background()
	if _, err := env.engine.RebuildFamily(ctx, FamilyCard); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.MissingTables(ctx, FamilyCard); err != nil {
			b.Fatal(err)
		}
	}
}
