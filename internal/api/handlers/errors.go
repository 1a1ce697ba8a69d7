// Package handlers implements the read API's HTTP handlers.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
	"github.com/ramonehamilton/deckstats/internal/api/response"
	"github.com/ramonehamilton/deckstats/internal/stats"
)

var (
	errRefreshing    = errors.New("statistics are temporarily unavailable")
	errUnknownPerson = errors.New("unknown person")
	errNoPlayability = errors.New("no playability data for archetype")
)

// badRequest marks a request parameter error.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// writeError maps accessor errors to HTTP responses. Refresh failures are
// reported without detail; the cause is logged.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusOf(err)
	switch status {
	case http.StatusServiceUnavailable:
		logger.Error("Aggregate refresh failed during request", "path", r.URL.Path, "error", err)
		err = errRefreshing
	case http.StatusInternalServerError:
		logger.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	response.Error(w, status, err)
}

func statusOf(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, stats.ErrInvalidScope),
		errors.Is(err, query.ErrInvalidSort):
		return http.StatusBadRequest
	case errors.Is(err, aggregate.ErrNotFound),
		errors.Is(err, stats.ErrCardNotFound),
		errors.Is(err, errUnknownPerson),
		errors.Is(err, errNoPlayability):
		return http.StatusNotFound
	case errors.Is(err, aggregate.ErrRefreshFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
