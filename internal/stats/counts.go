package stats

import (
	"context"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
)

// ArchetypeDeckCount is the number of decks registered to an archetype.
type ArchetypeDeckCount struct {
	ArchetypeID int64 `json:"archetype_id"`
	NumDecks    int   `json:"num_decks"`
}

// ArchetypeDeckCounts returns deck counts per archetype, within a season
// when seasonID is non-zero, most popular first.
func (s *Service) ArchetypeDeckCounts(ctx context.Context, seasonID int64) ([]*ArchetypeDeckCount, error) {
	table := aggregate.TableArchetypeCount
	var season query.Expr
	if seasonID != 0 {
		table = aggregate.TableSeasonArchetypeCount
		season = query.E("c.season_id = ?", seasonID)
	}
	sqlText, args := query.From(query.Ident(table)+" AS c").
		Columns("c.archetype_id", "c.num_decks").
		Where(season).
		OrderBy("c.num_decks DESC", "c.archetype_id").
		Build()

	return queryAll(ctx, s, aggregate.FamilyPlayability, sqlText, args, func(row rowScanner) (*ArchetypeDeckCount, error) {
		c := &ArchetypeDeckCount{}
		err := row.Scan(&c.ArchetypeID, &c.NumDecks)
		return c, err
	})
}

// SeasonDeckCount returns the number of archetyped decks in a season, or in
// every season when seasonID is zero.
func (s *Service) SeasonDeckCount(ctx context.Context, seasonID int64) (int, error) {
	var season query.Expr
	if seasonID != 0 {
		season = query.E("c.season_id = ?", seasonID)
	}
	sqlText, args := query.From(query.Ident(aggregate.TableSeasonCount) + " AS c").
		Columns("IFNULL(SUM(c.num_decks), 0)").
		Where(season).
		Build()

	var n int
	if err := s.queryValue(ctx, aggregate.FamilyPlayability, sqlText, args, &n); err != nil {
		return 0, err
	}
	return n, nil
}
