package aggregate

import "github.com/ramonehamilton/deckstats/internal/aggregate/query"

// Playability family table names.
const (
	TableSeasonCount                = "_season_count"
	TableSeasonArchetypeCount       = "_season_archetype_count"
	TableSeasonCardCount            = "_season_card_count"
	TableSeasonArchetypeCardCount   = "_season_archetype_card_count"
	TableSeasonArchetypePlayability = "_season_archetype_playability"
	TableArchetypeCount             = "_archetype_count"
	TableCardCount                  = "_card_count"
	TableArchetypeCardCount         = "_archetype_card_count"
	TableArchetypePlayability       = "_archetype_playability"
	TableSeasonPlayability          = "_season_playability"
	TablePlayability                = "_playability"

	FamilyPlayability = "playability"
)

var (
	nameColumn        = Column{Name: "name", Type: Text, NotNull: true}
	seasonColumn      = Column{Name: "season_id", Type: Integer, NotNull: true}
	archetypeColumn   = Column{Name: "archetype_id", Type: Integer, NotNull: true}
	numDecksColumn    = Column{Name: "num_decks", Type: Integer, NotNull: true}
	playabilityColumn = Column{Name: "playability", Type: Real, NotNull: true, Check: "playability BETWEEN 0 AND 1"}

	seasonFK    = ForeignKey{Column: "season_id", RefTable: "season", RefColumn: "id"}
	archetypeFK = ForeignKey{Column: "archetype_id", RefTable: "archetype", RefColumn: "id"}
)

// Only maindeck cards of decks with an archetype take part in playability.
func playabilityDefinitions() []Definition {
	return []Definition{
		{
			Name:  "season count",
			Table: TableSeasonCount,
			Schema: Schema{
				Columns:     []Column{seasonColumn, numDecksColumn},
				PrimaryKey:  []string{"season_id"},
				ForeignKeys: []ForeignKey{seasonFK},
			},
			Query: `SELECT
	season.season_id,
	COUNT(*) AS num_decks
FROM
	deck AS d
` + query.SeasonJoin + `
WHERE
	d.archetype_id IS NOT NULL
GROUP BY
	season.season_id`,
		},
		{
			Name:  "season archetype count",
			Table: TableSeasonArchetypeCount,
			Schema: Schema{
				Columns:     []Column{seasonColumn, archetypeColumn, numDecksColumn},
				PrimaryKey:  []string{"season_id", "archetype_id"},
				ForeignKeys: []ForeignKey{seasonFK, archetypeFK},
			},
			Query: `SELECT
	season.season_id,
	d.archetype_id,
	COUNT(*) AS num_decks
FROM
	deck AS d
` + query.SeasonJoin + `
WHERE
	d.archetype_id IS NOT NULL
GROUP BY
	season.season_id, d.archetype_id`,
		},
		{
			Name:  "season card count",
			Table: TableSeasonCardCount,
			Schema: Schema{
				Columns:     []Column{nameColumn, seasonColumn, numDecksColumn},
				PrimaryKey:  []string{"name", "season_id"},
				ForeignKeys: []ForeignKey{seasonFK},
				Indexes:     []Index{{Columns: []string{"season_id"}}},
			},
			Query: `SELECT
	dc.card AS name,
	season.season_id,
	COUNT(*) AS num_decks
FROM
	deck AS d
INNER JOIN
	deck_card AS dc ON d.id = dc.deck_id
` + query.SeasonJoin + `
WHERE
	NOT dc.sideboard AND d.archetype_id IS NOT NULL
GROUP BY
	dc.card, season.season_id`,
		},
		{
			Name:  "season archetype card count",
			Table: TableSeasonArchetypeCardCount,
			Schema: Schema{
				Columns:     []Column{nameColumn, seasonColumn, archetypeColumn, numDecksColumn},
				PrimaryKey:  []string{"name", "season_id", "archetype_id"},
				ForeignKeys: []ForeignKey{seasonFK, archetypeFK},
			},
			Query: `SELECT
	dc.card AS name,
	season.season_id,
	d.archetype_id,
	COUNT(*) AS num_decks
FROM
	deck AS d
INNER JOIN
	deck_card AS dc ON d.id = dc.deck_id
` + query.SeasonJoin + `
WHERE
	NOT dc.sideboard AND d.archetype_id IS NOT NULL
GROUP BY
	dc.card, d.archetype_id, season.season_id`,
		},
		{
			Name:  "season archetype playability",
			Table: TableSeasonArchetypePlayability,
			Schema: Schema{
				Columns:     []Column{nameColumn, seasonColumn, archetypeColumn, playabilityColumn},
				PrimaryKey:  []string{"name", "season_id", "archetype_id"},
				ForeignKeys: []ForeignKey{seasonFK, archetypeFK},
				Indexes:     []Index{{Columns: []string{"season_id", "archetype_id"}}},
			},
			Query: `SELECT
	sacc.name,
	sacc.season_id,
	sacc.archetype_id,
	ROUND(
		(CAST(sacc.num_decks AS REAL) / sac.num_decks)
		* (1.0 - CAST(scc.num_decks AS REAL) / sc.num_decks),
	5) AS playability
FROM
	_season_archetype_card_count AS sacc
INNER JOIN
	_season_archetype_count AS sac ON sac.archetype_id = sacc.archetype_id AND sac.season_id = sacc.season_id
INNER JOIN
	_season_card_count AS scc ON scc.name = sacc.name AND scc.season_id = sacc.season_id
INNER JOIN
	_season_count AS sc ON sc.season_id = sacc.season_id`,
			DependsOn: []string{TableSeasonArchetypeCardCount, TableSeasonArchetypeCount, TableSeasonCardCount, TableSeasonCount},
		},
		{
			Name:  "archetype count",
			Table: TableArchetypeCount,
			Schema: Schema{
				Columns:     []Column{archetypeColumn, numDecksColumn},
				PrimaryKey:  []string{"archetype_id"},
				ForeignKeys: []ForeignKey{archetypeFK},
			},
			Query: `SELECT
	d.archetype_id,
	COUNT(*) AS num_decks
FROM
	deck AS d
WHERE
	d.archetype_id IS NOT NULL
GROUP BY
	d.archetype_id`,
		},
		{
			Name:  "card count",
			Table: TableCardCount,
			Schema: Schema{
				Columns:    []Column{nameColumn, numDecksColumn},
				PrimaryKey: []string{"name"},
			},
			Query: `SELECT
	dc.card AS name,
	COUNT(*) AS num_decks
FROM
	deck AS d
INNER JOIN
	deck_card AS dc ON d.id = dc.deck_id
WHERE
	NOT dc.sideboard AND d.archetype_id IS NOT NULL
GROUP BY
	dc.card`,
		},
		{
			Name:  "archetype card count",
			Table: TableArchetypeCardCount,
			Schema: Schema{
				Columns:     []Column{nameColumn, archetypeColumn, numDecksColumn},
				PrimaryKey:  []string{"name", "archetype_id"},
				ForeignKeys: []ForeignKey{archetypeFK},
			},
			Query: `SELECT
	dc.card AS name,
	d.archetype_id,
	COUNT(*) AS num_decks
FROM
	deck AS d
INNER JOIN
	deck_card AS dc ON d.id = dc.deck_id
WHERE
	NOT dc.sideboard AND d.archetype_id IS NOT NULL
GROUP BY
	dc.card, d.archetype_id`,
		},
		{
			Name:  "archetype playability",
			Table: TableArchetypePlayability,
			Schema: Schema{
				Columns:     []Column{nameColumn, archetypeColumn, playabilityColumn},
				PrimaryKey:  []string{"name", "archetype_id"},
				ForeignKeys: []ForeignKey{archetypeFK},
				Indexes:     []Index{{Columns: []string{"archetype_id"}}},
			},
			Query: `SELECT
	acc.name,
	acc.archetype_id,
	ROUND(
		(CAST(acc.num_decks AS REAL) / ac.num_decks)
		* (1.0 - CAST(cc.num_decks AS REAL) / (SELECT COUNT(*) FROM deck WHERE archetype_id IS NOT NULL)),
	5) AS playability
FROM
	_archetype_card_count AS acc
INNER JOIN
	_archetype_count AS ac ON ac.archetype_id = acc.archetype_id
INNER JOIN
	_card_count AS cc ON cc.name = acc.name`,
			DependsOn: []string{TableArchetypeCardCount, TableArchetypeCount, TableCardCount},
		},
		{
			Name:  "season playability",
			Table: TableSeasonPlayability,
			Schema: Schema{
				Columns:     []Column{nameColumn, seasonColumn, playabilityColumn},
				PrimaryKey:  []string{"name", "season_id"},
				ForeignKeys: []ForeignKey{seasonFK},
				Indexes:     []Index{{Columns: []string{"season_id"}}},
			},
			Query: `SELECT
	scc.name,
	scc.season_id,
	ROUND(CAST(scc.num_decks AS REAL) / sc.num_decks, 5) AS playability
FROM
	_season_card_count AS scc
INNER JOIN
	_season_count AS sc ON sc.season_id = scc.season_id`,
			DependsOn: []string{TableSeasonCardCount, TableSeasonCount},
		},
		{
			Name:  "playability",
			Table: TablePlayability,
			Schema: Schema{
				Columns:    []Column{nameColumn, playabilityColumn},
				PrimaryKey: []string{"name"},
			},
			Query: `SELECT
	scc.name,
	ROUND(CAST(SUM(scc.num_decks) AS REAL) / SUM(sc.num_decks), 5) AS playability
FROM
	_season_card_count AS scc
INNER JOIN
	_season_count AS sc ON sc.season_id = scc.season_id
GROUP BY
	scc.name`,
			DependsOn: []string{TableSeasonCardCount, TableSeasonCount},
		},
	}
}

func playabilityFamily() Family {
	return Family{
		Name: FamilyPlayability,
		Members: []string{
			TableSeasonCount,
			TableSeasonArchetypeCount,
			TableSeasonCardCount,
			TableSeasonArchetypeCardCount,
			TableSeasonArchetypePlayability,
			TableArchetypeCount,
			TableCardCount,
			TableArchetypeCardCount,
			TableArchetypePlayability,
			TableSeasonPlayability,
			TablePlayability,
		},
	}
}

// DefaultRegistry returns the registry of every aggregate this package maintains.
func DefaultRegistry() *Registry {
	defs := append(cardDefinitions(), playabilityDefinitions()...)
	r, err := NewRegistry(defs, []Family{cardFamily(), playabilityFamily()})
	if err != nil {
		panic("aggregate: invalid default registry: " + err.Error())
	}
	return r
}
