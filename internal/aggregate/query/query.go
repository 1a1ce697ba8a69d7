// Package query assembles parameterized SELECT statements from named parts.
//
// Identifiers and SQL fragments passed to a Select are authored in code.
// Values supplied by callers travel only as bound arguments of an Expr, and
// caller-chosen orderings are resolved through a SortKeys whitelist.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Ident quotes a table or column identifier. It panics on names that are not
// plain identifiers; identifiers are compile-time constants in this codebase.
func Ident(name string) string {
	if !identPattern.MatchString(name) {
		panic(fmt.Sprintf("query: invalid identifier %q", name))
	}
	return `"` + name + `"`
}

// ValidIdent reports whether name can be used with Ident.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// Expr is an SQL fragment with '?' placeholders and the values bound to them.
type Expr struct {
	SQL  string
	Args []any
}

// E builds an Expr.
func E(sql string, args ...any) Expr {
	return Expr{SQL: sql, Args: args}
}

// IsZero reports whether the expression is empty.
func (e Expr) IsZero() bool {
	return strings.TrimSpace(e.SQL) == ""
}

// And joins non-empty expressions with AND, parenthesising each one.
func And(exprs ...Expr) Expr {
	var parts []string
	var args []any
	for _, e := range exprs {
		if e.IsZero() {
			continue
		}
		parts = append(parts, "("+e.SQL+")")
		args = append(args, e.Args...)
	}
	if len(parts) == 0 {
		return Expr{}
	}
	return Expr{SQL: strings.Join(parts, " AND "), Args: args}
}

// Select is a SELECT statement under construction.
type Select struct {
	columns []string
	from    string
	joins   []Expr
	where   []Expr
	groupBy []string
	having  []Expr
	orderBy []string
	limit   int
}

// From starts a SELECT over source, which is a quoted table reference
// optionally followed by an alias.
func From(source string) *Select {
	return &Select{from: source}
}

// Columns appends result columns.
func (s *Select) Columns(cols ...string) *Select {
	s.columns = append(s.columns, cols...)
	return s
}

// Join appends a join clause such as "INNER JOIN deck AS d ON d.id = x.deck_id".
func (s *Select) Join(join Expr) *Select {
	if !join.IsZero() {
		s.joins = append(s.joins, join)
	}
	return s
}

// Where appends a predicate. Predicates are combined with AND; empty ones are skipped.
func (s *Select) Where(pred Expr) *Select {
	if !pred.IsZero() {
		s.where = append(s.where, pred)
	}
	return s
}

// GroupBy appends grouping expressions.
func (s *Select) GroupBy(exprs ...string) *Select {
	s.groupBy = append(s.groupBy, exprs...)
	return s
}

// Having appends a HAVING predicate.
func (s *Select) Having(pred Expr) *Select {
	if !pred.IsZero() {
		s.having = append(s.having, pred)
	}
	return s
}

// OrderBy appends ordering terms.
func (s *Select) OrderBy(terms ...string) *Select {
	s.orderBy = append(s.orderBy, terms...)
	return s
}

// Limit caps the number of rows. Zero or negative means no limit.
func (s *Select) Limit(n int) *Select {
	s.limit = n
	return s
}

// Build renders the statement and its arguments in placeholder order.
func (s *Select) Build() (string, []any) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT\n\t")
	if len(s.columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(s.columns, ",\n\t"))
	}
	b.WriteString("\nFROM\n\t")
	b.WriteString(s.from)

	for _, j := range s.joins {
		b.WriteString("\n")
		b.WriteString(j.SQL)
		args = append(args, j.Args...)
	}

	if where := And(s.where...); !where.IsZero() {
		b.WriteString("\nWHERE\n\t")
		b.WriteString(where.SQL)
		args = append(args, where.Args...)
	}

	if len(s.groupBy) > 0 {
		b.WriteString("\nGROUP BY\n\t")
		b.WriteString(strings.Join(s.groupBy, ", "))
	}

	if having := And(s.having...); !having.IsZero() {
		b.WriteString("\nHAVING\n\t")
		b.WriteString(having.SQL)
		args = append(args, having.Args...)
	}

	if len(s.orderBy) > 0 {
		b.WriteString("\nORDER BY\n\t")
		b.WriteString(strings.Join(s.orderBy, ", "))
	}

	if s.limit > 0 {
		b.WriteString("\nLIMIT ")
		b.WriteString(strconv.Itoa(s.limit))
	}

	return b.String(), args
}
