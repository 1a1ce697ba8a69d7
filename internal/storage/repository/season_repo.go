package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// SeasonRepository handles the season dimension.
type SeasonRepository interface {
	// Create inserts a season and sets its ID.
	Create(ctx context.Context, season *models.Season) error

	// GetByID retrieves a season, or nil if it does not exist.
	GetByID(ctx context.Context, id int64) (*models.Season, error)

	// List returns all seasons ordered by start date.
	List(ctx context.Context) ([]*models.Season, error)

	// Current returns the season containing t, or nil if t precedes every season.
	Current(ctx context.Context, t time.Time) (*models.Season, error)

	// Delete removes a season.
	Delete(ctx context.Context, id int64) error
}

type seasonRepository struct {
	db *sql.DB
}

// NewSeasonRepository creates a new season repository.
func NewSeasonRepository(db *sql.DB) SeasonRepository {
	return &seasonRepository{db: db}
}

func (r *seasonRepository) Create(ctx context.Context, season *models.Season) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO season (code, start_date) VALUES (?, ?)`,
		season.Code, season.StartDate.Unix())
	if err != nil {
		return fmt.Errorf("failed to create season %s: %w", season.Code, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get season id: %w", err)
	}
	season.ID = id
	return nil
}

func (r *seasonRepository) GetByID(ctx context.Context, id int64) (*models.Season, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, code, start_date FROM season WHERE id = ?`, id)
	s, err := scanSeason(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *seasonRepository) List(ctx context.Context) ([]*models.Season, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, code, start_date FROM season ORDER BY start_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var seasons []*models.Season
	for rows.Next() {
		s, err := scanSeason(rows)
		if err != nil {
			return nil, err
		}
		seasons = append(seasons, s)
	}
	return seasons, rows.Err()
}

func (r *seasonRepository) Current(ctx context.Context, t time.Time) (*models.Season, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, code, start_date FROM season
		WHERE start_date <= ?
		ORDER BY start_date DESC
		LIMIT 1
	`, t.Unix())
	s, err := scanSeason(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *seasonRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM season WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete season %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeason(row rowScanner) (*models.Season, error) {
	var s models.Season
	var start int64
	if err := row.Scan(&s.ID, &s.Code, &start); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan season: %w", err)
	}
	s.StartDate = time.Unix(start, 0).UTC()
	return &s, nil
}
