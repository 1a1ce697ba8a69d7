package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_Build(t *testing.T) {
	sql, args := From(`"_card_stats" AS cs`).
		Columns("name", "SUM(num_decks) AS num_decks").
		Where(E("season_id = ?", 3)).
		Where(Expr{}).
		Where(E("name LIKE ?", "F%")).
		GroupBy("name").
		OrderBy("num_decks DESC", "name").
		Limit(10).
		Build()

	assert.Equal(t, "SELECT\n\tname,\n\tSUM(num_decks) AS num_decks\nFROM\n\t\"_card_stats\" AS cs\n"+
		"WHERE\n\t(season_id = ?) AND (name LIKE ?)\nGROUP BY\n\tname\nORDER BY\n\tnum_decks DESC, name\nLIMIT 10", sql)
	assert.Equal(t, []any{3, "F%"}, args)
}

func TestSelect_BuildArgsFollowClauseOrder(t *testing.T) {
	sql, args := From("deck AS d").
		Columns("d.id").
		Join(E("INNER JOIN deck_card AS dc ON dc.deck_id = d.id AND dc.card = ?", "Island")).
		Where(E("d.person_id = ?", 7)).
		GroupBy("d.id").
		Having(E("COUNT(*) > ?", 1)).
		Build()

	assert.Contains(t, sql, "HAVING\n\t(COUNT(*) > ?)")
	assert.NotContains(t, sql, "LIMIT")
	assert.Equal(t, []any{"Island", 7, 1}, args)
}

func TestAnd_SkipsEmpty(t *testing.T) {
	assert.True(t, And(Expr{}, E("  ")).IsZero())

	e := And(E("a = ?", 1), Expr{}, E("b = ?", 2))
	assert.Equal(t, "(a = ?) AND (b = ?)", e.SQL)
	assert.Equal(t, []any{1, 2}, e.Args)
}

func TestIdent(t *testing.T) {
	assert.Equal(t, `"_card_stats"`, Ident("_card_stats"))
	assert.True(t, ValidIdent("_new_card_stats"))
	assert.False(t, ValidIdent(`x"; DROP TABLE deck; --`))
	assert.Panics(t, func() { Ident("bad name") })
}

func TestParseOrder(t *testing.T) {
	orders, err := ParseOrder("num_decks DESC, record, name asc")
	require.NoError(t, err)
	assert.Equal(t, []Order{{Key: "num_decks", Desc: true}, {Key: "record"}, {Key: "name"}}, orders)

	_, err = ParseOrder("name sideways")
	assert.ErrorIs(t, err, ErrInvalidSort)

	_, err = ParseOrder("name DESC extra")
	assert.ErrorIs(t, err, ErrInvalidSort)
}

func TestSortKeys_Resolve(t *testing.T) {
	keys := SortKeys{"name": "name", "record": "SUM(wins - losses)"}

	terms, err := keys.Resolve([]Order{{Key: "record", Desc: true}, {Key: "name"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"SUM(wins - losses) DESC", "name"}, terms)

	_, err = keys.Resolve([]Order{{Key: "1; DROP TABLE deck"}})
	assert.ErrorIs(t, err, ErrInvalidSort)
}
