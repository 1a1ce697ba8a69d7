package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
	"github.com/ramonehamilton/deckstats/internal/api/response"
	"github.com/ramonehamilton/deckstats/internal/stats"
)

// CardHandler handles card statistics requests.
type CardHandler struct {
	stats  *stats.Service
	people PersonResolver
	logger *slog.Logger
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(svc *stats.Service, people PersonResolver, logger *slog.Logger) *CardHandler {
	return &CardHandler{stats: svc, people: people, logger: logger}
}

// cardOptions reads the card query parameters: season_id, archetype_id,
// person, tournament_only, name, sort and limit.
func (h *CardHandler) cardOptions(r *http.Request) (stats.CardOptions, error) {
	var opts stats.CardOptions
	var err error
	if opts.SeasonID, err = queryInt64(r, "season_id"); err != nil {
		return opts, err
	}
	if opts.ArchetypeID, err = queryInt64(r, "archetype_id"); err != nil {
		return opts, err
	}
	if opts.TournamentOnly, err = queryBool(r, "tournament_only"); err != nil {
		return opts, err
	}
	if opts.Limit, err = queryLimit(r); err != nil {
		return opts, err
	}
	q := r.URL.Query()
	if person := q.Get("person"); person != "" {
		if opts.PersonID, err = resolvePerson(r.Context(), h.people, person); err != nil {
			return opts, err
		}
	}
	if name := q.Get("name"); name != "" {
		opts.Where = query.E("cs.name LIKE ? ESCAPE '\\'", "%"+escapeLike(name)+"%")
	}
	if sort := q.Get("sort"); sort != "" {
		if opts.OrderBy, err = query.ParseOrder(sort); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// GetCards returns card stats for the requested scope.
// GET /api/v1/cards
func (h *CardHandler) GetCards(w http.ResponseWriter, r *http.Request) {
	opts, err := h.cardOptions(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	cards, err := h.stats.LoadCards(r.Context(), opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "json":
	case "csv":
		response.CSV(w, "cards.csv", cards)
		return
	default:
		writeError(w, r, h.logger, badRequest{fmt.Errorf("unsupported format %q", r.URL.Query().Get("format"))})
		return
	}
	total := len(cards)
	if opts.Limit > 0 {
		if total, err = h.stats.LoadCardsCount(r.Context(), opts); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	response.List(w, cards, total)
}

// GetCard returns one card's stats.
// GET /api/v1/cards/{name}
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, h.logger, badRequest{err})
		return
	}
	seasonID, err := queryInt64(r, "season_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tournamentOnly, err := queryBool(r, "tournament_only")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	card, err := h.stats.LoadCard(r.Context(), name, tournamentOnly, seasonID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, card)
}

// GetUniqueCards returns the cards only this person has played.
// GET /api/v1/people/{person}/unique-cards
func (h *CardHandler) GetUniqueCards(w http.ResponseWriter, r *http.Request) {
	personID, err := resolvePerson(r.Context(), h.people, chi.URLParam(r, "person"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cards, err := h.stats.UniqueCardsPlayed(r.Context(), personID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, cards)
}

// GetTrailblazerCards returns the cards this person was first to play.
// GET /api/v1/people/{person}/trailblazer-cards
func (h *CardHandler) GetTrailblazerCards(w http.ResponseWriter, r *http.Request) {
	personID, err := resolvePerson(r.Context(), h.people, chi.URLParam(r, "person"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cards, err := h.stats.TrailblazerCards(r.Context(), personID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, cards)
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
