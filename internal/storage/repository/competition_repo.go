package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// CompetitionRepository handles leagues and tournaments.
type CompetitionRepository interface {
	// Create inserts a competition and sets its ID. The competition type is
	// created on first use.
	Create(ctx context.Context, competition *models.Competition) error
}

type competitionRepository struct {
	db *sql.DB
}

// NewCompetitionRepository creates a new competition repository.
func NewCompetitionRepository(db *sql.DB) CompetitionRepository {
	return &competitionRepository{db: db}
}

func (r *competitionRepository) Create(ctx context.Context, competition *models.Competition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO competition_type (name) VALUES (?) ON CONFLICT (name) DO NOTHING`,
		competition.Type); err != nil {
		return fmt.Errorf("failed to ensure competition type %s: %w", competition.Type, err)
	}

	topN := competition.TopN
	if topN == 0 {
		topN = 8
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO competition (name, competition_type_id, start_date, end_date, top_n)
		VALUES (?, (SELECT id FROM competition_type WHERE name = ?), ?, ?, ?)
	`, competition.Name, competition.Type, competition.StartDate.Unix(), competition.EndDate.Unix(), topN)
	if err != nil {
		return fmt.Errorf("failed to create competition %s: %w", competition.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get competition id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit competition: %w", err)
	}
	competition.ID = id
	competition.TopN = topN
	return nil
}
