package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
	"github.com/ramonehamilton/deckstats/internal/storage/repository"
)

// Service provides the fact store write and lookup operations used by
// ingestion collaborators. It never touches aggregate tables.
type Service struct {
	db           *DB
	seasons      repository.SeasonRepository
	archetypes   repository.ArchetypeRepository
	people       repository.PersonRepository
	competitions repository.CompetitionRepository
	decks        repository.DeckRepository
	matches      repository.MatchRepository
	cards        repository.CardRepository
}

// NewService creates a new storage service.
func NewService(db *DB) *Service {
	conn := db.Conn()
	return &Service{
		db:           db,
		seasons:      repository.NewSeasonRepository(conn),
		archetypes:   repository.NewArchetypeRepository(conn),
		people:       repository.NewPersonRepository(conn),
		competitions: repository.NewCompetitionRepository(conn),
		decks:        repository.NewDeckRepository(conn),
		matches:      repository.NewMatchRepository(conn),
		cards:        repository.NewCardRepository(conn),
	}
}

// DB returns the underlying database.
func (s *Service) DB() *DB { return s.db }

// Seasons returns the season repository.
func (s *Service) Seasons() repository.SeasonRepository { return s.seasons }

// Archetypes returns the archetype repository.
func (s *Service) Archetypes() repository.ArchetypeRepository { return s.archetypes }

// People returns the person repository.
func (s *Service) People() repository.PersonRepository { return s.people }

// Competitions returns the competition repository.
func (s *Service) Competitions() repository.CompetitionRepository { return s.competitions }

// Decks returns the deck repository.
func (s *Service) Decks() repository.DeckRepository { return s.decks }

// Matches returns the match repository.
func (s *Service) Matches() repository.MatchRepository { return s.matches }

// Cards returns the card metadata repository.
func (s *Service) Cards() repository.CardRepository { return s.cards }

// RecordLeagueRun stores a finished league deck and all of its matches in one
// transaction. Every result must belong to deckID.
func (s *Service) RecordLeagueRun(ctx context.Context, deckID int64, results []*models.MatchResult) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, r := range results {
			if r.DeckID != deckID {
				return fmt.Errorf("match result for deck %d recorded against run of deck %d", r.DeckID, deckID)
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO "match" (date, elimination) VALUES (?, ?)`, r.Date.Unix(), r.Elimination)
			if err != nil {
				return fmt.Errorf("failed to create match: %w", err)
			}
			matchID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get match id: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO deck_match (deck_id, match_id, games) VALUES (?, ?, ?)`,
				r.DeckID, matchID, r.Games); err != nil {
				return fmt.Errorf("failed to record deck %d in match: %w", r.DeckID, err)
			}
			if r.OpponentDeckID != nil {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO deck_match (deck_id, match_id, games) VALUES (?, ?, ?)`,
					*r.OpponentDeckID, matchID, r.OpponentGames); err != nil {
					return fmt.Errorf("failed to record deck %d in match: %w", *r.OpponentDeckID, err)
				}
			}
		}
		return nil
	})
}
