package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
	"github.com/ramonehamilton/deckstats/internal/stats"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{badRequest{errors.New("limit must be positive")}, http.StatusBadRequest},
		{fmt.Errorf("scope: %w", stats.ErrInvalidScope), http.StatusBadRequest},
		{fmt.Errorf("sort: %w", query.ErrInvalidSort), http.StatusBadRequest},
		{fmt.Errorf("family: %w", aggregate.ErrNotFound), http.StatusNotFound},
		{stats.ErrCardNotFound, http.StatusNotFound},
		{errUnknownPerson, http.StatusNotFound},
		{fmt.Errorf("rebuild: %w", aggregate.ErrRefreshFailed), http.StatusServiceUnavailable},
		{fmt.Errorf("read failed after 3 attempts: %w",
			errors.Join(aggregate.ErrRefreshFailed, errors.New("no such table: _card_stats"))), http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
