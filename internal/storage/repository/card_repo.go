package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// CardRepository stores card metadata keyed by card name.
type CardRepository interface {
	// Upsert inserts or replaces a card's metadata.
	Upsert(ctx context.Context, card *models.Card) error

	// All returns every known card keyed by name.
	All(ctx context.Context) (map[string]*models.Card, error)

	// MissingNames returns card names that appear in decklists but have no metadata.
	MissingNames(ctx context.Context) ([]string, error)

	// Exists reports whether any decklist contains the named card.
	Exists(ctx context.Context, name string) (bool, error)
}

type cardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *sql.DB) CardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) Upsert(ctx context.Context, card *models.Card) error {
	updated := card.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO card (name, mana_cost, cmc, type_line, colors, rarity, oracle_text, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			mana_cost = excluded.mana_cost,
			cmc = excluded.cmc,
			type_line = excluded.type_line,
			colors = excluded.colors,
			rarity = excluded.rarity,
			oracle_text = excluded.oracle_text,
			updated_at = excluded.updated_at
	`, card.Name, card.ManaCost, card.CMC, card.TypeLine, card.Colors, card.Rarity, card.OracleText, updated.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", card.Name, err)
	}
	return nil
}

func (r *cardRepository) All(ctx context.Context) (map[string]*models.Card, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, mana_cost, cmc, type_line, colors, rarity, oracle_text, updated_at FROM card
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	cards := make(map[string]*models.Card)
	for rows.Next() {
		var c models.Card
		var updated int64
		if err := rows.Scan(&c.Name, &c.ManaCost, &c.CMC, &c.TypeLine, &c.Colors, &c.Rarity, &c.OracleText, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		c.UpdatedAt = time.Unix(updated, 0).UTC()
		cards[c.Name] = &c
	}
	return cards, rows.Err()
}

func (r *cardRepository) MissingNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT dc.card
		FROM deck_card AS dc
		LEFT JOIN card AS c ON c.name = dc.card
		WHERE c.name IS NULL
		ORDER BY dc.card
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to find cards without metadata: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan card name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *cardRepository) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM deck_card WHERE card = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check card %s: %w", name, err)
	}
	return exists, nil
}
