package stats

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// CardStats is one card's rolled-up record within a scope.
type CardStats struct {
	Name            string       `json:"name"`
	NumDecks        int          `json:"num_decks"`
	Wins            int          `json:"wins"`
	Losses          int          `json:"losses"`
	Draws           int          `json:"draws"`
	Record          int          `json:"record"`
	PerfectRuns     int          `json:"perfect_runs"`
	TournamentWins  int          `json:"tournament_wins"`
	TournamentTop8s int          `json:"tournament_top8s"`
	WinPercent      WinPercent   `json:"win_percent"`
	Card            *models.Card `json:"card,omitempty" csv:"-"`
}

// CardOptions narrows and orders a card stats query.
type CardOptions struct {
	// SeasonID restricts to one season. Zero means all seasons.
	SeasonID int64

	// ArchetypeID and PersonID select the grouping scope. At most one may be set.
	ArchetypeID int64
	PersonID    int64

	// Where is an additional predicate over the stats table, aliased cs.
	Where query.Expr

	// TournamentOnly restricts to decks entered into tournaments.
	TournamentOnly bool

	// OrderBy defaults to most played first.
	OrderBy []query.Order

	// Limit caps the number of rows. Zero means no limit.
	Limit int
}

// CardSortKeys are the keys accepted in CardOptions.OrderBy.
var CardSortKeys = query.SortKeys{
	"name":             "cs.name",
	"num_decks":        "num_decks",
	"wins":             "wins",
	"losses":           "losses",
	"draws":            "draws",
	"record":           "record",
	"perfect_runs":     "perfect_runs",
	"tournament_wins":  "tournament_wins",
	"tournament_top8s": "tournament_top8s",
	"win_percent":      "CAST(SUM(cs.wins) AS REAL) / NULLIF(SUM(cs.wins + cs.losses), 0)",
}

// DefaultCardOrder is the ordering used when CardOptions.OrderBy is empty.
var DefaultCardOrder = []query.Order{
	{Key: "num_decks", Desc: true},
	{Key: "record"},
	{Key: "name"},
}

// cardScope picks the stats table and predicates for the options.
func cardScope(opts CardOptions) (table string, where query.Expr, groupBy []string, err error) {
	switch {
	case opts.ArchetypeID != 0 && opts.PersonID != 0:
		return "", query.Expr{}, nil, ErrInvalidScope
	case opts.PersonID != 0:
		table = aggregate.TableCardPersonStats
		where = query.E("cs.person_id = ?", opts.PersonID)
		groupBy = []string{"cs.person_id", "cs.name"}
	case opts.ArchetypeID != 0:
		table = aggregate.TableCardArchetypeStats
		where = query.E("cs.archetype_id = ?", opts.ArchetypeID)
		groupBy = []string{"cs.archetype_id", "cs.name"}
	default:
		table = aggregate.TableCardStats
		groupBy = []string{"cs.name"}
	}

	preds := []query.Expr{where, opts.Where}
	if opts.SeasonID != 0 {
		preds = append(preds, query.E("cs.season_id = ?", opts.SeasonID))
	}
	if opts.TournamentOnly {
		preds = append(preds, query.E("cs.deck_type = ?", aggregate.DeckTypeTournament))
	}
	return table, query.And(preds...), groupBy, nil
}

// LoadCards returns per-card stats for the scope. An unknown archetype,
// person or season yields an empty result.
func (s *Service) LoadCards(ctx context.Context, opts CardOptions) ([]*CardStats, error) {
	table, where, groupBy, err := cardScope(opts)
	if err != nil {
		return nil, err
	}
	orders := opts.OrderBy
	if len(orders) == 0 {
		orders = DefaultCardOrder
	}
	orderBy, err := CardSortKeys.Resolve(orders)
	if err != nil {
		return nil, err
	}

	sqlText, args := query.From(query.Ident(table)+" AS cs").
		Columns(
			"cs.name",
			"SUM(cs.num_decks) AS num_decks",
			"SUM(cs.wins) AS wins",
			"SUM(cs.losses) AS losses",
			"SUM(cs.draws) AS draws",
			"SUM(cs.wins - cs.losses) AS record",
			"SUM(cs.perfect_runs) AS perfect_runs",
			"SUM(cs.tournament_wins) AS tournament_wins",
			"SUM(cs.tournament_top8s) AS tournament_top8s",
		).
		Where(where).
		GroupBy(groupBy...).
		OrderBy(orderBy...).
		Limit(opts.Limit).
		Build()

	results, err := queryAll(ctx, s, aggregate.FamilyCard, sqlText, args, func(row rowScanner) (*CardStats, error) {
		c := &CardStats{}
		if err := row.Scan(&c.Name, &c.NumDecks, &c.Wins, &c.Losses, &c.Draws, &c.Record,
			&c.PerfectRuns, &c.TournamentWins, &c.TournamentTop8s); err != nil {
			return nil, err
		}
		c.WinPercent = NewWinPercent(c.Wins, c.Losses)
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return results, nil
	}
	cards, err := s.cardsByName(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range results {
		c.Card = cards[c.Name]
	}
	return results, nil
}

// LoadCardsCount returns the number of distinct cards in the scope.
func (s *Service) LoadCardsCount(ctx context.Context, opts CardOptions) (int, error) {
	table, where, _, err := cardScope(opts)
	if err != nil {
		return 0, err
	}
	sqlText, args := query.From(query.Ident(table) + " AS cs").
		Columns("COUNT(DISTINCT cs.name)").
		Where(where).
		Build()

	var n int
	if err := s.queryValue(ctx, aggregate.FamilyCard, sqlText, args, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// LoadCard returns one card's stats across all decks. A card that was never
// played but is known to the catalogue comes back with zero counts.
func (s *Service) LoadCard(ctx context.Context, name string, tournamentOnly bool, seasonID int64) (*CardStats, error) {
	results, err := s.LoadCards(ctx, CardOptions{
		SeasonID:       seasonID,
		Where:          query.E("cs.name = ?", name),
		TournamentOnly: tournamentOnly,
	})
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		return results[0], nil
	}

	cards, err := s.cardsByName(ctx)
	if err != nil {
		return nil, err
	}
	card, ok := cards[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrCardNotFound)
	}
	return &CardStats{Name: name, Card: card}, nil
}

// UniqueCardsPlayed returns the cards only this person has played in a deck with matches.
func (s *Service) UniqueCardsPlayed(ctx context.Context, personID int64) ([]string, error) {
	sqlText, args := query.From(query.Ident(aggregate.TableUniqueCards)+" AS uc").
		Columns("uc.card").
		Where(query.E("uc.person_id = ?", personID)).
		OrderBy("uc.card").
		Build()
	return s.names(ctx, sqlText, args)
}

// TrailblazerCards returns the cards this person was first to play in a deck with matches.
func (s *Service) TrailblazerCards(ctx context.Context, personID int64) ([]string, error) {
	sqlText, args := query.From(query.Ident(aggregate.TableTrailblazerCards)+" AS tc").
		Columns("DISTINCT tc.card").
		Join(query.E("INNER JOIN\n\tdeck AS d ON tc.deck_id = d.id")).
		Where(query.E("d.person_id = ?", personID)).
		OrderBy("tc.card").
		Build()
	return s.names(ctx, sqlText, args)
}

func (s *Service) names(ctx context.Context, sqlText string, args []any) ([]string, error) {
	return queryAll(ctx, s, aggregate.FamilyCard, sqlText, args, scanString)
}

func scanString(row rowScanner) (string, error) {
	var v string
	err := row.Scan(&v)
	return v, err
}
