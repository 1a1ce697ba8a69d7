package aggregate

import "github.com/ramonehamilton/deckstats/internal/aggregate/query"

// Card family table names.
const (
	TableCardStats          = "_card_stats"
	TableCardArchetypeStats = "_card_archetype_stats"
	TableCardPersonStats    = "_card_person_stats"
	TableUniqueCards        = "_unique_cards"
	TableTrailblazerCards   = "_trailblazer_cards"

	FamilyCard = "card"
)

// DeckType partitions card stats by the competition a deck was entered into.
const (
	DeckTypeLeague     = "league"
	DeckTypeTournament = "tournament"
	DeckTypeOther      = "other"
)

var deckTypeCheck = "deck_type IN ('" + DeckTypeLeague + "', '" + DeckTypeTournament + "', '" + DeckTypeOther + "')"

// cardStatsColumns lists the rolled-up counters shared by the three card
// stats tables, after their key columns.
var cardStatsColumns = []Column{
	{Name: "deck_type", Type: Text, NotNull: true, Check: deckTypeCheck},
	{Name: "num_decks", Type: Integer, NotNull: true},
	{Name: "wins", Type: Integer, NotNull: true},
	{Name: "losses", Type: Integer, NotNull: true},
	{Name: "draws", Type: Integer, NotNull: true},
	{Name: "perfect_runs", Type: Integer, NotNull: true},
	{Name: "tournament_wins", Type: Integer, NotNull: true},
	{Name: "tournament_top8s", Type: Integer, NotNull: true},
}

// cardStatsSelect is the counter part of every card stats query. Each
// (deck, card) pair is counted once whether the card is in the maindeck,
// the sideboard or both.
var cardStatsSelect = []string{
	query.DeckType + " AS deck_type",
	"COUNT(*) AS num_decks",
	"IFNULL(SUM(dsum.wins), 0) AS wins",
	"IFNULL(SUM(dsum.losses), 0) AS losses",
	"IFNULL(SUM(dsum.draws), 0) AS draws",
	"SUM(CASE WHEN dsum.wins >= 5 AND dsum.losses = 0 AND d.source_id IN (SELECT id FROM source WHERE name = 'League') THEN 1 ELSE 0 END) AS perfect_runs",
	"SUM(CASE WHEN d.finish = 1 THEN 1 ELSE 0 END) AS tournament_wins",
	"SUM(CASE WHEN d.finish <= 8 THEN 1 ELSE 0 END) AS tournament_top8s",
}

// cardStatsDefinition builds a card stats table keyed by name, season and
// deck type plus an optional scoping column of the deck table.
func cardStatsDefinition(name, table, scope, scopeRef string) Definition {
	columns := []Column{
		{Name: "name", Type: Text, NotNull: true},
		{Name: "season_id", Type: Integer, NotNull: true},
	}
	selects := []string{"dc.card AS name", "season.season_id"}
	groupBy := []string{"dc.card", "season.season_id"}
	pk := []string{"season_id"}
	fks := []ForeignKey{{Column: "season_id", RefTable: "season", RefColumn: "id"}}
	var indexes []Index
	where := query.Expr{}

	if scope != "" {
		columns = append(columns, Column{Name: scope, Type: Integer, NotNull: true})
		selects = append(selects, "d."+scope)
		groupBy = append(groupBy, "d."+scope)
		pk = append(pk, scope)
		fks = append(fks, ForeignKey{Column: scope, RefTable: scopeRef, RefColumn: "id"})
		indexes = append(indexes, Index{Columns: []string{scope, "name"}})
		where = query.E("d." + scope + " IS NOT NULL")
	}
	pk = append(pk, "name", "deck_type")
	groupBy = append(groupBy, query.DeckType)

	sql, _ := query.From("deck AS d").
		Columns(append(selects, cardStatsSelect...)...).
		Join(query.E("INNER JOIN\n\t(SELECT DISTINCT card, deck_id FROM deck_card) AS dc ON d.id = dc.deck_id")).
		Join(query.E(query.CompetitionJoin)).
		Join(query.E(query.SeasonJoin)).
		Join(query.E(query.ResultJoin)).
		Where(where).
		GroupBy(groupBy...).
		Build()

	return Definition{
		Name:  name,
		Table: table,
		Schema: Schema{
			Columns:     append(columns, cardStatsColumns...),
			PrimaryKey:  pk,
			ForeignKeys: fks,
			Indexes:     indexes,
		},
		Query: sql,
	}
}

func cardDefinitions() []Definition {
	return []Definition{
		cardStatsDefinition("card stats", TableCardStats, "", ""),
		cardStatsDefinition("card archetype stats", TableCardArchetypeStats, "archetype_id", "archetype"),
		cardStatsDefinition("card person stats", TableCardPersonStats, "person_id", "person"),
		{
			Name:  "unique cards",
			Table: TableUniqueCards,
			Schema: Schema{
				Columns: []Column{
					{Name: "card", Type: Text, NotNull: true},
					{Name: "person_id", Type: Integer, NotNull: true},
				},
				PrimaryKey:  []string{"card", "person_id"},
				ForeignKeys: []ForeignKey{{Column: "person_id", RefTable: "person", RefColumn: "id"}},
				Indexes:     []Index{{Columns: []string{"person_id"}}},
			},
			Query: `SELECT
	dc.card,
	MIN(d.person_id) AS person_id
FROM
	deck_card AS dc
INNER JOIN
	deck AS d ON dc.deck_id = d.id
WHERE
	d.id IN (SELECT deck_id FROM deck_match)
GROUP BY
	dc.card
HAVING
	COUNT(DISTINCT d.person_id) = 1`,
		},
		{
			Name:  "trailblazer cards",
			Table: TableTrailblazerCards,
			Schema: Schema{
				Columns: []Column{
					{Name: "card", Type: Text, NotNull: true},
					{Name: "deck_id", Type: Integer, NotNull: true},
					{Name: "created_date", Type: Integer, NotNull: true},
				},
				PrimaryKey:  []string{"card", "deck_id"},
				ForeignKeys: []ForeignKey{{Column: "deck_id", RefTable: "deck", RefColumn: "id"}},
				Indexes:     []Index{{Columns: []string{"deck_id"}}},
			},
			// The first deck with at least one match to play a card. Decks
			// registered at the same instant share the honour.
			Query: `SELECT DISTINCT
	dc.card,
	d.id AS deck_id,
	d.created_date
FROM
	deck AS d
INNER JOIN
	deck_card AS dc ON dc.deck_id = d.id
INNER JOIN (
	SELECT
		dc.card,
		MIN(d.created_date) AS created_date
	FROM
		deck_card AS dc
	INNER JOIN
		deck AS d ON dc.deck_id = d.id
	WHERE
		d.id IN (SELECT deck_id FROM deck_match)
	GROUP BY
		dc.card
) AS fp ON fp.card = dc.card AND fp.created_date = d.created_date
WHERE
	d.id IN (SELECT deck_id FROM deck_match)`,
		},
	}
}

func cardFamily() Family {
	return Family{
		Name: FamilyCard,
		Members: []string{
			TableCardStats,
			TableCardArchetypeStats,
			TableCardPersonStats,
			TableUniqueCards,
			TableTrailblazerCards,
		},
	}
}
