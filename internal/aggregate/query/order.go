package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSort is returned for malformed sort terms and unknown sort keys.
var ErrInvalidSort = errors.New("invalid sort")

// Order is one caller-requested sort term.
type Order struct {
	Key  string
	Desc bool
}

// SortKeys maps the sort keys a caller may use to the SQL expression each one sorts by.
type SortKeys map[string]string

// ParseOrder parses "num_decks DESC, record, name" into sort terms.
func ParseOrder(s string) ([]Order, error) {
	var orders []Order
	for _, term := range strings.Split(s, ",") {
		fields := strings.Fields(term)
		switch len(fields) {
		case 0:
			continue
		case 1:
			orders = append(orders, Order{Key: fields[0]})
		case 2:
			switch strings.ToUpper(fields[1]) {
			case "ASC":
				orders = append(orders, Order{Key: fields[0]})
			case "DESC":
				orders = append(orders, Order{Key: fields[0], Desc: true})
			default:
				return nil, fmt.Errorf("%w: direction %q", ErrInvalidSort, fields[1])
			}
		default:
			return nil, fmt.Errorf("%w: term %q", ErrInvalidSort, strings.TrimSpace(term))
		}
	}
	return orders, nil
}

// Resolve turns sort terms into ORDER BY expressions, rejecting unknown keys.
func (k SortKeys) Resolve(orders []Order) ([]string, error) {
	terms := make([]string, 0, len(orders))
	for _, o := range orders {
		expr, ok := k[o.Key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidSort, o.Key)
		}
		if o.Desc {
			expr += " DESC"
		}
		terms = append(terms, expr)
	}
	return terms, nil
}
