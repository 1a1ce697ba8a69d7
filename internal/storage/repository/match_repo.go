package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// MatchRepository records matches between decks.
type MatchRepository interface {
	// Record inserts a match and one deck_match row per participating deck.
	// It returns the match ID.
	Record(ctx context.Context, result *models.MatchResult) (int64, error)

	// CountForDeck returns the number of matches a deck has played.
	CountForDeck(ctx context.Context, deckID int64) (int, error)
}

type matchRepository struct {
	db *sql.DB
}

// NewMatchRepository creates a new match repository.
func NewMatchRepository(db *sql.DB) MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) Record(ctx context.Context, result *models.MatchResult) (int64, error) {
	date := result.Date
	if date.IsZero() {
		date = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO "match" (date, elimination) VALUES (?, ?)`,
		date.Unix(), result.Elimination)
	if err != nil {
		return 0, fmt.Errorf("failed to create match: %w", err)
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get match id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO deck_match (deck_id, match_id, games) VALUES (?, ?, ?)`,
		result.DeckID, matchID, result.Games); err != nil {
		return 0, fmt.Errorf("failed to record deck %d in match: %w", result.DeckID, err)
	}
	if result.OpponentDeckID != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deck_match (deck_id, match_id, games) VALUES (?, ?, ?)`,
			*result.OpponentDeckID, matchID, result.OpponentGames); err != nil {
			return 0, fmt.Errorf("failed to record deck %d in match: %w", *result.OpponentDeckID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit match: %w", err)
	}
	return matchID, nil
}

func (r *matchRepository) CountForDeck(ctx context.Context, deckID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deck_match WHERE deck_id = ?`, deckID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches for deck %d: %w", deckID, err)
	}
	return n, nil
}
