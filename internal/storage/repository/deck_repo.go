package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// DeckRepository handles database operations for decks and their cards.
type DeckRepository interface {
	// Create inserts a deck together with its cards and sets its ID.
	Create(ctx context.Context, deck *models.Deck) error

	// GetByID retrieves a deck with its cards, or nil if it does not exist.
	GetByID(ctx context.Context, id int64) (*models.Deck, error)

	// SetArchetype assigns (or clears, when archetypeID is nil) a deck's archetype.
	SetArchetype(ctx context.Context, deckID int64, archetypeID *int64) error

	// SetFinish records a deck's final tournament placement.
	SetFinish(ctx context.Context, deckID int64, finish int) error

	// Delete removes a deck and its cards and matches.
	Delete(ctx context.Context, id int64) error
}

type deckRepository struct {
	db *sql.DB
}

// NewDeckRepository creates a new deck repository.
func NewDeckRepository(db *sql.DB) DeckRepository {
	return &deckRepository{db: db}
}

func (r *deckRepository) Create(ctx context.Context, deck *models.Deck) error {
	if deck.PersonID == 0 {
		return fmt.Errorf("deck requires a person")
	}
	source := deck.Source
	if source == "" {
		source = models.SourceMTGO
	}
	created := deck.CreatedDate
	if created.IsZero() {
		created = time.Now()
	}
	updated := deck.UpdatedDate
	if updated.IsZero() {
		updated = created
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO deck (
			name, person_id, source_id, competition_id, archetype_id,
			identifier, url, finish, decklist_hash, created_date, updated_date
		) VALUES (?, ?, (SELECT id FROM source WHERE name = ?), ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		deck.Name, deck.PersonID, source, deck.CompetitionID, deck.ArchetypeID,
		deck.Identifier, deck.URL, deck.Finish, deck.DecklistHash, created.Unix(), updated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create deck: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get deck id: %w", err)
	}

	for _, c := range deck.Cards {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deck_card (deck_id, card, n, sideboard) VALUES (?, ?, ?, ?)`,
			id, c.Name, c.N, c.Sideboard); err != nil {
			return fmt.Errorf("failed to add card %s to deck: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deck: %w", err)
	}
	deck.ID = id
	deck.Source = source
	deck.CreatedDate = created
	deck.UpdatedDate = updated
	return nil
}

func (r *deckRepository) GetByID(ctx context.Context, id int64) (*models.Deck, error) {
	var d models.Deck
	var competitionID, archetypeID sql.NullInt64
	var finish sql.NullInt64
	var identifier, url, hash sql.NullString
	var created, updated int64

	err := r.db.QueryRowContext(ctx, `
		SELECT d.id, d.name, d.person_id, s.name, d.competition_id, d.archetype_id,
			d.identifier, d.url, d.finish, d.decklist_hash, d.created_date, d.updated_date
		FROM deck AS d
		INNER JOIN source AS s ON s.id = d.source_id
		WHERE d.id = ?
	`, id).Scan(&d.ID, &d.Name, &d.PersonID, &d.Source, &competitionID, &archetypeID,
		&identifier, &url, &finish, &hash, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck %d: %w", id, err)
	}

	if competitionID.Valid {
		d.CompetitionID = &competitionID.Int64
	}
	if archetypeID.Valid {
		d.ArchetypeID = &archetypeID.Int64
	}
	if finish.Valid {
		f := int(finish.Int64)
		d.Finish = &f
	}
	d.Identifier = identifier.String
	d.URL = url.String
	d.DecklistHash = hash.String
	d.CreatedDate = time.Unix(created, 0).UTC()
	d.UpdatedDate = time.Unix(updated, 0).UTC()

	rows, err := r.db.QueryContext(ctx,
		`SELECT card, n, sideboard FROM deck_card WHERE deck_id = ? ORDER BY sideboard, card`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for deck %d: %w", id, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var c models.DeckCard
		if err := rows.Scan(&c.Name, &c.N, &c.Sideboard); err != nil {
			return nil, fmt.Errorf("failed to scan deck card: %w", err)
		}
		d.Cards = append(d.Cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deck cards: %w", err)
	}

	return &d, nil
}

func (r *deckRepository) SetArchetype(ctx context.Context, deckID int64, archetypeID *int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE deck SET archetype_id = ?, updated_date = ? WHERE id = ?`,
		archetypeID, time.Now().Unix(), deckID)
	if err != nil {
		return fmt.Errorf("failed to set archetype for deck %d: %w", deckID, err)
	}
	return nil
}

func (r *deckRepository) SetFinish(ctx context.Context, deckID int64, finish int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE deck SET finish = ? WHERE id = ?`, finish, deckID)
	if err != nil {
		return fmt.Errorf("failed to set finish for deck %d: %w", deckID, err)
	}
	return nil
}

func (r *deckRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM deck WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete deck %d: %w", id, err)
	}
	return nil
}
