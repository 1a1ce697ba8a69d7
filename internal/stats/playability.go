package stats

import (
	"context"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
)

// DefaultPlayabilityLimit caps SeasonPlayability and ArchetypePlayability
// when no limit is given.
const DefaultPlayabilityLimit = 100

// CardPlayability is a card's playability score within a scope.
type CardPlayability struct {
	Name        string  `json:"name"`
	Playability float64 `json:"playability"`
}

// KeyCard is the most characteristic card of an archetype.
type KeyCard struct {
	ArchetypeID int64   `json:"archetype_id"`
	Name        string  `json:"name"`
	Playability float64 `json:"playability"`
}

// KeyCards returns, for every archetype, its single highest-playability card
// in the season, or over all time when seasonID is zero. Ties go to the
// alphabetically first card name.
func (s *Service) KeyCards(ctx context.Context, seasonID int64) ([]*KeyCard, error) {
	table := aggregate.TableArchetypePlayability
	var where query.Expr
	if seasonID != 0 {
		table = aggregate.TableSeasonArchetypePlayability
		where = query.E("p.season_id = ?", seasonID)
	}

	ranked, args := query.From(query.Ident(table)+" AS p").
		Columns(
			"p.archetype_id",
			"p.name",
			"p.playability",
			"ROW_NUMBER() OVER (PARTITION BY p.archetype_id ORDER BY p.playability DESC, p.name ASC) AS rn",
		).
		Where(where).
		Build()

	sqlText, _ := query.From("(\n"+ranked+"\n) AS ranked").
		Columns("ranked.archetype_id", "ranked.name", "ranked.playability").
		Where(query.E("ranked.rn = 1")).
		OrderBy("ranked.archetype_id").
		Build()

	return queryAll(ctx, s, aggregate.FamilyPlayability, sqlText, args, func(row rowScanner) (*KeyCard, error) {
		k := &KeyCard{}
		err := row.Scan(&k.ArchetypeID, &k.Name, &k.Playability)
		return k, err
	})
}

// KeyCardsByArchetype is KeyCards keyed by archetype ID.
func (s *Service) KeyCardsByArchetype(ctx context.Context, seasonID int64) (map[int64]string, error) {
	keyCards, err := s.KeyCards(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(keyCards))
	for _, k := range keyCards {
		out[k.ArchetypeID] = k.Name
	}
	return out, nil
}

// Playability returns every card's all-time playability.
func (s *Service) Playability(ctx context.Context) (map[string]float64, error) {
	sqlText, args := query.From(query.Ident(aggregate.TablePlayability)+" AS p").
		Columns("p.name", "p.playability").
		Build()
	rows, err := queryAll(ctx, s, aggregate.FamilyPlayability, sqlText, args, scanPlayability)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Playability
	}
	return out, nil
}

// SeasonPlayability returns the season's most played cards by share of decks.
func (s *Service) SeasonPlayability(ctx context.Context, seasonID int64, limit int) ([]*CardPlayability, error) {
	if limit <= 0 {
		limit = DefaultPlayabilityLimit
	}
	sqlText, args := query.From(query.Ident(aggregate.TableSeasonPlayability)+" AS p").
		Columns("p.name", "p.playability").
		Where(query.E("p.season_id = ?", seasonID)).
		OrderBy("p.playability DESC", "p.name").
		Limit(limit).
		Build()
	return queryAll(ctx, s, aggregate.FamilyPlayability, sqlText, args, scanPlayability)
}

// Rank returns every card's position in the all-time playability ranking,
// starting at 1. Equal scores are ranked by name.
func (s *Service) Rank(ctx context.Context) (map[string]int, error) {
	sqlText, args := query.From(query.Ident(aggregate.TablePlayability)+" AS p").
		Columns("p.name", "ROW_NUMBER() OVER (ORDER BY p.playability DESC, p.name) AS position").
		Build()

	type ranked struct {
		name string
		rank int
	}
	rows, err := queryAll(ctx, s, aggregate.FamilyPlayability, sqlText, args, func(row rowScanner) (ranked, error) {
		var r ranked
		err := row.Scan(&r.name, &r.rank)
		return r, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.name] = r.rank
	}
	return out, nil
}

// ArchetypePlayability returns the archetype's most characteristic cards,
// within a season when seasonID is non-zero.
func (s *Service) ArchetypePlayability(ctx context.Context, archetypeID, seasonID int64, limit int) ([]*CardPlayability, error) {
	if limit <= 0 {
		limit = DefaultPlayabilityLimit
	}
	table := aggregate.TableArchetypePlayability
	var season query.Expr
	if seasonID != 0 {
		table = aggregate.TableSeasonArchetypePlayability
		season = query.E("p.season_id = ?", seasonID)
	}
	sqlText, args := query.From(query.Ident(table)+" AS p").
		Columns("p.name", "p.playability").
		Where(query.E("p.archetype_id = ?", archetypeID)).
		Where(season).
		OrderBy("p.playability DESC", "p.name").
		Limit(limit).
		Build()
	return queryAll(ctx, s, aggregate.FamilyPlayability, sqlText, args, scanPlayability)
}

func scanPlayability(row rowScanner) (*CardPlayability, error) {
	p := &CardPlayability{}
	err := row.Scan(&p.Name, &p.Playability)
	return p, err
}
