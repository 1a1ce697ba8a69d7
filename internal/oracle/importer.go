package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Fetcher looks cards up by name.
type Fetcher interface {
	CardsByNames(ctx context.Context, names []string) ([]ScryfallCard, []string, error)
}

// ImportResult summarises one import run.
type ImportResult struct {
	Requested int      `json:"requested"`
	Imported  int      `json:"imported"`
	NotFound  []string `json:"not_found"`
}

// Importer fetches metadata for cards that appear in decklists but not in
// the card table.
type Importer struct {
	store   CardStore
	fetcher Fetcher
	catalog *Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewImporter creates an importer. catalog may be nil; when set it is
// reloaded after every import that stored a card.
func NewImporter(store CardStore, fetcher Fetcher, catalog *Catalog, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, fetcher: fetcher, catalog: catalog, logger: logger, now: time.Now}
}

// ImportMissing fetches and stores metadata for every card without it.
// Cards are stored under the name the decklists use.
func (im *Importer) ImportMissing(ctx context.Context) (*ImportResult, error) {
	names, err := im.store.MissingNames(ctx)
	if err != nil {
		return nil, err
	}
	result := &ImportResult{Requested: len(names)}
	if len(names) == 0 {
		return result, nil
	}

	wanted := make(map[string]string, len(names))
	for _, n := range names {
		wanted[strings.ToLower(n)] = n
	}

	cards, notFound, err := im.fetcher.CardsByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch card metadata: %w", err)
	}
	result.NotFound = notFound

	now := im.now().UTC()
	for i := range cards {
		card := cards[i].Model(now)
		if local, ok := wanted[strings.ToLower(card.Name)]; ok {
			card.Name = local
		} else if local, ok := wanted[strings.ToLower(frontFace(card.Name))]; ok {
			card.Name = local
		}
		if err := im.store.Upsert(ctx, card); err != nil {
			return result, err
		}
		result.Imported++
	}

	im.logger.Info("Imported card metadata",
		"requested", result.Requested,
		"imported", result.Imported,
		"notFound", len(result.NotFound))

	if im.catalog != nil && result.Imported > 0 {
		if err := im.catalog.Reload(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

// frontFace returns the first face of a "Front // Back" name.
func frontFace(name string) string {
	front, _, _ := strings.Cut(name, " // ")
	return front
}
