package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// ArchetypeRepository handles the archetype dimension.
type ArchetypeRepository interface {
	// Create inserts an archetype and sets its ID.
	Create(ctx context.Context, archetype *models.Archetype) error

	// List returns all archetypes ordered by name.
	List(ctx context.Context) ([]*models.Archetype, error)

	// Delete removes an archetype. Decks keep their archetype_id, so the
	// aggregates built from them stop validating until the decks are reassigned.
	Delete(ctx context.Context, id int64) error
}

type archetypeRepository struct {
	db *sql.DB
}

// NewArchetypeRepository creates a new archetype repository.
func NewArchetypeRepository(db *sql.DB) ArchetypeRepository {
	return &archetypeRepository{db: db}
}

func (r *archetypeRepository) Create(ctx context.Context, archetype *models.Archetype) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO archetype (name) VALUES (?)`, archetype.Name)
	if err != nil {
		return fmt.Errorf("failed to create archetype %s: %w", archetype.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get archetype id: %w", err)
	}
	archetype.ID = id
	return nil
}

func (r *archetypeRepository) List(ctx context.Context) ([]*models.Archetype, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM archetype ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list archetypes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var archetypes []*models.Archetype
	for rows.Next() {
		var a models.Archetype
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan archetype: %w", err)
		}
		archetypes = append(archetypes, &a)
	}
	return archetypes, rows.Err()
}

func (r *archetypeRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM archetype WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete archetype %d: %w", id, err)
	}
	return nil
}
