// Package oracle keeps the card metadata catalogue: the card table, an
// in-memory view of it, and the Scryfall importer that fills it.
package oracle

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// CardStore is the card table.
type CardStore interface {
	All(ctx context.Context) (map[string]*models.Card, error)
	Upsert(ctx context.Context, card *models.Card) error
	MissingNames(ctx context.Context) ([]string, error)
}

// Catalog serves card metadata by name. The card table is read on first use
// and again on Reload.
type Catalog struct {
	store  CardStore
	logger *slog.Logger

	mu    sync.RWMutex
	cards map[string]*models.Card
}

// NewCatalog creates a catalogue over store.
func NewCatalog(store CardStore, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: store, logger: logger}
}

// CardsByName returns every known card keyed by name. The map is shared and
// must not be modified.
func (c *Catalog) CardsByName(ctx context.Context) (map[string]*models.Card, error) {
	c.mu.RLock()
	cards := c.cards
	c.mu.RUnlock()
	if cards != nil {
		return cards, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cards != nil {
		return c.cards, nil
	}
	return c.loadLocked(ctx)
}

// Card returns one card's metadata, or nil if it is unknown.
func (c *Catalog) Card(ctx context.Context, name string) (*models.Card, error) {
	cards, err := c.CardsByName(ctx)
	if err != nil {
		return nil, err
	}
	return cards[name], nil
}

// Reload re-reads the card table.
func (c *Catalog) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.loadLocked(ctx)
	return err
}

func (c *Catalog) loadLocked(ctx context.Context) (map[string]*models.Card, error) {
	cards, err := c.store.All(ctx)
	if err != nil {
		return nil, err
	}
	c.cards = cards
	c.logger.Debug("Loaded card catalogue", "cards", len(cards))
	return cards, nil
}
