package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const maxLimit = 1000

// PersonResolver maps a username or alias to a person ID.
type PersonResolver interface {
	Resolve(ctx context.Context, name string) (int64, bool, error)
}

func queryInt64(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, badRequest{fmt.Errorf("invalid %s %q", name, v)}
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest{fmt.Errorf("invalid %s %q", name, v)}
	}
	return b, nil
}

func queryLimit(r *http.Request) (int, error) {
	n, err := queryInt64(r, "limit")
	if err != nil {
		return 0, err
	}
	if n > maxLimit {
		return 0, badRequest{fmt.Errorf("limit cannot exceed %d", maxLimit)}
	}
	return int(n), nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v := chi.URLParam(r, name)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, badRequest{fmt.Errorf("invalid %s %q", name, v)}
	}
	return n, nil
}

// resolvePerson accepts a numeric person ID or a username known to the
// resolver.
func resolvePerson(ctx context.Context, people PersonResolver, v string) (int64, error) {
	if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	if people == nil {
		return 0, fmt.Errorf("%w %q", errUnknownPerson, v)
	}
	id, ok, err := people.Resolve(ctx, v)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w %q", errUnknownPerson, v)
	}
	return id, nil
}
