package query

// Fragments shared by aggregate definitions. Each assumes the deck table is
// aliased as d.

// SeasonJoin attaches season.season_id to every deck created on or after the
// first season's start. A season ends where the next one begins.
const SeasonJoin = `INNER JOIN (
	SELECT
		s.id AS season_id,
		s.start_date,
		IFNULL((SELECT MIN(ns.start_date) FROM season AS ns WHERE ns.start_date > s.start_date), 9223372036854775807) AS end_date
	FROM
		season AS s
) AS season ON d.created_date >= season.start_date AND d.created_date < season.end_date`

// CompetitionJoin attaches the competition (c) and its type (ct). Decks
// outside any competition keep NULL columns.
const CompetitionJoin = `LEFT JOIN
	competition AS c ON d.competition_id = c.id
LEFT JOIN
	competition_type AS ct ON ct.id = c.competition_type_id`

// ResultJoin attaches per-deck wins, losses and draws as dsum. A deck_match
// row without an opponent is a bye and counts as a win.
const ResultJoin = `LEFT JOIN (
	SELECT
		dm.deck_id AS id,
		SUM(CASE WHEN dm.games > IFNULL(odm.games, 0) THEN 1 ELSE 0 END) AS wins,
		SUM(CASE WHEN dm.games < odm.games THEN 1 ELSE 0 END) AS losses,
		SUM(CASE WHEN dm.games = odm.games THEN 1 ELSE 0 END) AS draws
	FROM
		deck_match AS dm
	LEFT JOIN
		deck_match AS odm ON dm.match_id = odm.match_id AND dm.deck_id <> odm.deck_id
	GROUP BY
		dm.deck_id
) AS dsum ON d.id = dsum.id`

// DeckType classifies a deck by its competition type name.
const DeckType = `(CASE WHEN ct.name = 'League' THEN 'league' WHEN ct.name = 'Gatherling' THEN 'tournament' ELSE 'other' END)`
