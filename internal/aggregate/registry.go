// Package aggregate maintains derived statistics tables over the fact store.
//
// Each aggregate table is registered as a Definition: a schema and a SELECT
// over fact tables and other aggregates. The Engine rebuilds a table by
// filling a shadow copy and swapping it into place in one transaction. The
// Loader wraps reads with a staleness check that rebuilds a whole Family
// the first time one of its tables is found missing.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
)

// Definition describes one aggregate table.
type Definition struct {
	// Name is the stable logical name, e.g. "card stats".
	Name string

	// Table is the physical table name. Aggregate tables start with an underscore.
	Table string

	Schema Schema

	// Query is a SELECT whose result columns match Schema.Columns in order.
	// It reads only fact tables and the tables listed in DependsOn.
	Query string

	// DependsOn lists the aggregate tables Query reads.
	DependsOn []string
}

// Family is a group of aggregate tables whose staleness is checked and whose
// rebuild is triggered together.
type Family struct {
	Name    string
	Members []string
}

// Registry is the static catalogue of aggregate definitions and families.
// It is immutable once constructed.
type Registry struct {
	defs     []*Definition
	byName   map[string]*Definition
	byTable  map[string]*Definition
	families []*Family
	byFamily map[string]*Family
	memberOf map[string]*Family
	order    map[string][]*Definition
}

// NewRegistry validates the definitions and families and precomputes each
// family's rebuild order.
func NewRegistry(defs []Definition, families []Family) (*Registry, error) {
	r := &Registry{
		byName:   make(map[string]*Definition, len(defs)),
		byTable:  make(map[string]*Definition, len(defs)),
		byFamily: make(map[string]*Family, len(families)),
		memberOf: make(map[string]*Family, len(defs)),
		order:    make(map[string][]*Definition, len(families)),
	}

	for i := range defs {
		d := defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("aggregate %s has no name", d.Table)
		}
		if !query.ValidIdent(d.Table) || !strings.HasPrefix(d.Table, "_") {
			return nil, fmt.Errorf("aggregate %s has invalid table name %q", d.Name, d.Table)
		}
		if strings.TrimSpace(d.Query) == "" {
			return nil, fmt.Errorf("aggregate %s has no query", d.Name)
		}
		if err := d.Schema.validate(); err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", d.Name, err)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("aggregate name %q registered twice", d.Name)
		}
		if _, dup := r.byTable[d.Table]; dup {
			return nil, fmt.Errorf("aggregate table %s registered twice", d.Table)
		}
		r.defs = append(r.defs, &d)
		r.byName[d.Name] = &d
		r.byTable[d.Table] = &d
	}

	for _, d := range r.defs {
		for _, dep := range d.DependsOn {
			if _, ok := r.byTable[dep]; !ok {
				return nil, fmt.Errorf("aggregate %s depends on unregistered table %s: %w", d.Table, dep, ErrNotFound)
			}
		}
	}
	if err := r.checkAcyclic(); err != nil {
		return nil, err
	}

	for i := range families {
		f := families[i]
		if f.Name == "" || len(f.Members) == 0 {
			return nil, fmt.Errorf("family %q must have a name and members", f.Name)
		}
		if _, dup := r.byFamily[f.Name]; dup {
			return nil, fmt.Errorf("family %s registered twice", f.Name)
		}
		for _, m := range f.Members {
			if _, ok := r.byTable[m]; !ok {
				return nil, fmt.Errorf("family %s member %s: %w", f.Name, m, ErrNotFound)
			}
			if other, taken := r.memberOf[m]; taken {
				return nil, fmt.Errorf("table %s belongs to both %s and %s", m, other.Name, f.Name)
			}
			r.memberOf[m] = &f
		}
		r.families = append(r.families, &f)
		r.byFamily[f.Name] = &f
		r.order[f.Name] = r.topologicalOrder(&f)
	}

	return r, nil
}

// Definition looks a definition up by logical name or table name.
func (r *Registry) Definition(name string) (*Definition, error) {
	if d, ok := r.byName[name]; ok {
		return d, nil
	}
	if d, ok := r.byTable[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("aggregate %q: %w", name, ErrNotFound)
}

// Definitions returns every definition in registration order.
func (r *Registry) Definitions() []*Definition {
	return append([]*Definition(nil), r.defs...)
}

// Family looks a family up by name.
func (r *Registry) Family(name string) (*Family, error) {
	f, ok := r.byFamily[name]
	if !ok {
		return nil, fmt.Errorf("family %q: %w", name, ErrNotFound)
	}
	return f, nil
}

// Families returns every family in registration order.
func (r *Registry) Families() []*Family {
	return append([]*Family(nil), r.families...)
}

// FamilyOf returns the family a table belongs to.
func (r *Registry) FamilyOf(table string) (*Family, error) {
	f, ok := r.memberOf[table]
	if !ok {
		return nil, fmt.Errorf("family of %q: %w", table, ErrNotFound)
	}
	return f, nil
}

// RebuildOrder returns the family's members ordered so that every table
// comes after the tables it depends on.
func (r *Registry) RebuildOrder(family string) ([]*Definition, error) {
	order, ok := r.order[family]
	if !ok {
		return nil, fmt.Errorf("family %q: %w", family, ErrNotFound)
	}
	return append([]*Definition(nil), order...), nil
}

// Primary returns the family's terminal table: the last one in rebuild order.
func (r *Registry) Primary(family string) (*Definition, error) {
	order, err := r.RebuildOrder(family)
	if err != nil {
		return nil, err
	}
	return order[len(order)-1], nil
}

// checkAcyclic walks the whole dependency graph depth first.
func (r *Registry) checkAcyclic() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.defs))
	var path []string

	var visit func(table string) error
	visit = func(table string) error {
		switch state[table] {
		case visiting:
			return fmt.Errorf("%s -> %s: %w", strings.Join(path, " -> "), table, ErrCycle)
		case done:
			return nil
		}
		state[table] = visiting
		path = append(path, table)
		for _, dep := range r.byTable[table].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[table] = done
		return nil
	}

	for _, d := range r.defs {
		if err := visit(d.Table); err != nil {
			return err
		}
	}
	return nil
}

// topologicalOrder sorts a family's members with Kahn's algorithm, restricted
// to edges inside the family. Ties keep the family's member order so the
// result is deterministic.
func (r *Registry) topologicalOrder(f *Family) []*Definition {
	inFamily := make(map[string]bool, len(f.Members))
	for _, m := range f.Members {
		inFamily[m] = true
	}

	indegree := make(map[string]int, len(f.Members))
	dependents := make(map[string][]string, len(f.Members))
	for _, m := range f.Members {
		for _, dep := range r.byTable[m].DependsOn {
			if inFamily[dep] {
				indegree[m]++
				dependents[dep] = append(dependents[dep], m)
			}
		}
	}

	order := make([]*Definition, 0, len(f.Members))
	emitted := make(map[string]bool, len(f.Members))
	for len(order) < len(f.Members) {
		for _, m := range f.Members {
			if emitted[m] || indegree[m] > 0 {
				continue
			}
			emitted[m] = true
			order = append(order, r.byTable[m])
			for _, next := range dependents[m] {
				indegree[next]--
			}
			break
		}
	}
	return order
}
