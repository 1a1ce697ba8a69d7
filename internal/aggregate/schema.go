package aggregate

import (
	"fmt"
	"strings"

	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
)

// ColumnType is a declared SQLite column type.
type ColumnType string

const (
	Integer ColumnType = "INTEGER"
	Text    ColumnType = "TEXT"
	Real    ColumnType = "REAL"
)

// Column is one column of an aggregate table.
type Column struct {
	Name    string
	Type    ColumnType
	NotNull bool
	// Check is an optional CHECK constraint expression.
	Check string
}

// ForeignKey references a dimension or fact table. Every aggregate foreign
// key cascades on update and delete.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Index is a secondary index over the listed columns.
type Index struct {
	Columns []string
}

// Schema describes an aggregate table.
type Schema struct {
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	Indexes     []Index
}

// ColumnNames returns the column names in declaration order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

func (s Schema) column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s Schema) validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if !query.ValidIdent(c.Name) {
			return fmt.Errorf("invalid column name %q", c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %s", c.Name)
		}
		seen[c.Name] = true
		switch c.Type {
		case Integer, Text, Real:
		default:
			return fmt.Errorf("column %s has unsupported type %q", c.Name, c.Type)
		}
	}
	if len(s.PrimaryKey) == 0 {
		return fmt.Errorf("schema has no primary key")
	}
	for _, pk := range s.PrimaryKey {
		if !seen[pk] {
			return fmt.Errorf("primary key column %s is not declared", pk)
		}
	}
	for _, fk := range s.ForeignKeys {
		if !seen[fk.Column] {
			return fmt.Errorf("foreign key column %s is not declared", fk.Column)
		}
		if !query.ValidIdent(fk.RefTable) || !query.ValidIdent(fk.RefColumn) {
			return fmt.Errorf("invalid foreign key reference %s(%s)", fk.RefTable, fk.RefColumn)
		}
	}
	for _, idx := range s.Indexes {
		for _, col := range idx.Columns {
			if !seen[col] {
				return fmt.Errorf("index column %s is not declared", col)
			}
		}
	}
	return nil
}

// createTableSQL renders CREATE TABLE for the schema under the given table name.
func (s Schema) createTableSQL(table string) string {
	var lines []string
	for _, c := range s.Columns {
		line := query.Ident(c.Name) + " " + string(c.Type)
		if c.NotNull {
			line += " NOT NULL"
		}
		if c.Check != "" {
			line += " CHECK (" + c.Check + ")"
		}
		lines = append(lines, line)
	}
	lines = append(lines, "PRIMARY KEY ("+quoteAll(s.PrimaryKey)+")")
	for _, fk := range s.ForeignKeys {
		lines = append(lines, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON UPDATE CASCADE ON DELETE CASCADE",
			query.Ident(fk.Column), query.Ident(fk.RefTable), query.Ident(fk.RefColumn)))
	}
	return "CREATE TABLE " + query.Ident(table) + " (\n\t" + strings.Join(lines, ",\n\t") + "\n)"
}

// createIndexSQL renders the secondary index statements for table.
func (s Schema) createIndexSQL(table string) []string {
	stmts := make([]string, 0, len(s.Indexes))
	for _, idx := range s.Indexes {
		name := "idx" + table + "_" + strings.Join(idx.Columns, "_")
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
			query.Ident(name), query.Ident(table), quoteAll(idx.Columns)))
	}
	return stmts
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = query.Ident(n)
	}
	return strings.Join(quoted, ", ")
}
