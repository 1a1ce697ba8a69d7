package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/api/response"
	"github.com/ramonehamilton/deckstats/internal/oracle"
	"github.com/ramonehamilton/deckstats/internal/version"
)

// CardImporter fills in missing card metadata.
type CardImporter interface {
	ImportMissing(ctx context.Context) (*oracle.ImportResult, error)
}

// FamilyStatus reports whether every table of a family is present.
type FamilyStatus struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Fresh   bool     `json:"fresh"`
	Missing []string `json:"missing"`
}

// SystemHandler handles version, refresh metrics and operator requests.
type SystemHandler struct {
	loader   *aggregate.Loader
	importer CardImporter
	logger   *slog.Logger
}

// NewSystemHandler creates a new SystemHandler. importer may be nil.
func NewSystemHandler(loader *aggregate.Loader, importer CardImporter, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{loader: loader, importer: importer, logger: logger}
}

// GetVersion returns the build version.
// GET /api/v1/system/version
func (h *SystemHandler) GetVersion(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, version.Get())
}

// GetRefreshMetrics returns aggregate refresh statistics.
// GET /api/v1/system/refresh-metrics
func (h *SystemHandler) GetRefreshMetrics(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, h.loader.Engine().Metrics().GetStats())
}

// GetFamilies lists aggregate families and their freshness.
// GET /api/v1/system/families
func (h *SystemHandler) GetFamilies(w http.ResponseWriter, r *http.Request) {
	families := h.loader.Engine().Registry().Families()
	out := make([]*FamilyStatus, 0, len(families))
	for _, f := range families {
		missing, err := h.loader.Engine().MissingTables(r.Context(), f.Name)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if missing == nil {
			missing = []string{}
		}
		out = append(out, &FamilyStatus{
			Name:    f.Name,
			Members: f.Members,
			Fresh:   len(missing) == 0,
			Missing: missing,
		})
	}
	response.Success(w, out)
}

// InvalidateFamily drops a family's tables so the next read rebuilds them.
// POST /api/v1/system/families/{family}/invalidate
func (h *SystemHandler) InvalidateFamily(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	if err := h.loader.Invalidate(r.Context(), family); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Accepted(w, map[string]string{"family": family, "status": "invalidated"})
}

// InvalidateAll invalidates every family.
// POST /api/v1/system/families/invalidate
func (h *SystemHandler) InvalidateAll(w http.ResponseWriter, r *http.Request) {
	if err := h.loader.InvalidateAll(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Accepted(w, map[string]string{"family": "all", "status": "invalidated"})
}

// RefreshFamily rebuilds a family now.
// POST /api/v1/system/families/{family}/refresh
func (h *SystemHandler) RefreshFamily(w http.ResponseWriter, r *http.Request) {
	res, err := h.loader.Refresh(r.Context(), chi.URLParam(r, "family"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, res)
}

// ImportCards fetches metadata for cards the catalogue does not know yet.
// POST /api/v1/system/cards/import
func (h *SystemHandler) ImportCards(w http.ResponseWriter, r *http.Request) {
	res, err := h.importer.ImportMissing(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, res)
}
