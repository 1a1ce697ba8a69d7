package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ramonehamilton/deckstats/internal/api/response"
	"github.com/ramonehamilton/deckstats/internal/charts"
	"github.com/ramonehamilton/deckstats/internal/stats"
)

// PlayabilityHandler handles playability and deck count requests.
type PlayabilityHandler struct {
	stats  *stats.Service
	logger *slog.Logger
}

// NewPlayabilityHandler creates a new PlayabilityHandler.
func NewPlayabilityHandler(svc *stats.Service, logger *slog.Logger) *PlayabilityHandler {
	return &PlayabilityHandler{stats: svc, logger: logger}
}

// GetPlayability returns every card's all-time playability.
// GET /api/v1/playability
func (h *PlayabilityHandler) GetPlayability(w http.ResponseWriter, r *http.Request) {
	p, err := h.stats.Playability(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, p)
}

// GetRank returns every card's position in the all-time playability ranking.
// GET /api/v1/playability/rank
func (h *PlayabilityHandler) GetRank(w http.ResponseWriter, r *http.Request) {
	rank, err := h.stats.Rank(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, rank)
}

// GetKeyCards returns each archetype's key card.
// GET /api/v1/playability/key-cards
func (h *PlayabilityHandler) GetKeyCards(w http.ResponseWriter, r *http.Request) {
	seasonID, err := queryInt64(r, "season_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	keyCards, err := h.stats.KeyCards(r.Context(), seasonID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, keyCards)
}

// GetSeasonPlayability returns a season's most played cards.
// GET /api/v1/seasons/{seasonID}/playability
func (h *PlayabilityHandler) GetSeasonPlayability(w http.ResponseWriter, r *http.Request) {
	seasonID, err := pathInt64(r, "seasonID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cards, err := h.stats.SeasonPlayability(r.Context(), seasonID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, cards)
}

// GetSeasonDeckCount returns the number of archetyped decks in a season.
// GET /api/v1/seasons/{seasonID}/deck-count
func (h *PlayabilityHandler) GetSeasonDeckCount(w http.ResponseWriter, r *http.Request) {
	seasonID, err := pathInt64(r, "seasonID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	n, err := h.stats.SeasonDeckCount(r.Context(), seasonID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, map[string]int{"num_decks": n})
}

// GetDeckCounts returns deck counts per archetype.
// GET /api/v1/archetypes/deck-counts
func (h *PlayabilityHandler) GetDeckCounts(w http.ResponseWriter, r *http.Request) {
	seasonID, err := queryInt64(r, "season_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	counts, err := h.stats.ArchetypeDeckCounts(r.Context(), seasonID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, counts)
}

func (h *PlayabilityHandler) archetypePlayability(r *http.Request) (int64, []*stats.CardPlayability, error) {
	archetypeID, err := pathInt64(r, "archetypeID")
	if err != nil {
		return 0, nil, err
	}
	seasonID, err := queryInt64(r, "season_id")
	if err != nil {
		return 0, nil, err
	}
	limit, err := queryLimit(r)
	if err != nil {
		return 0, nil, err
	}
	cards, err := h.stats.ArchetypePlayability(r.Context(), archetypeID, seasonID, limit)
	return archetypeID, cards, err
}

// GetArchetypePlayability returns an archetype's most characteristic cards.
// GET /api/v1/archetypes/{archetypeID}/playability
func (h *PlayabilityHandler) GetArchetypePlayability(w http.ResponseWriter, r *http.Request) {
	_, cards, err := h.archetypePlayability(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, cards)
}

// GetArchetypeChart renders an archetype's playability as an HTML bar chart.
// GET /api/v1/archetypes/{archetypeID}/playability/chart
func (h *PlayabilityHandler) GetArchetypeChart(w http.ResponseWriter, r *http.Request) {
	archetypeID, cards, err := h.archetypePlayability(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if len(cards) == 0 {
		writeError(w, r, h.logger, fmt.Errorf("%w %d", errNoPlayability, archetypeID))
		return
	}

	config := charts.DefaultChartConfig()
	config.Title = fmt.Sprintf("Archetype %d key cards", archetypeID)
	config.YAxisLabel = "Playability"

	var buf bytes.Buffer
	if err := charts.RenderBarChart(&buf, "Playability", PlayabilityPoints(cards), config); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.HTML(w, buf.Bytes())
}

// PlayabilityPoints converts playability rows to chart points.
func PlayabilityPoints(cards []*stats.CardPlayability) []charts.DataPoint {
	points := make([]charts.DataPoint, len(cards))
	for i, c := range cards {
		points[i] = charts.DataPoint{Label: c.Name, Value: c.Playability}
	}
	return points
}
