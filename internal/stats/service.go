// Package stats answers card, playability and deck count questions from the
// aggregate tables. Every accessor goes through the aggregate loader, so a
// stale family is rebuilt before it is queried and a failed rebuild is
// returned to the caller instead of stale rows.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

var (
	// ErrInvalidScope is returned when both an archetype and a person scope are requested.
	ErrInvalidScope = errors.New("archetype and person scopes are mutually exclusive")

	// ErrCardNotFound is returned by LoadCard for a name that was never played
	// and is unknown to the card catalogue.
	ErrCardNotFound = errors.New("card not found")
)

// CardKnowledge supplies static card metadata keyed by card name.
type CardKnowledge interface {
	CardsByName(ctx context.Context) (map[string]*models.Card, error)
}

// ServiceConfig configures the accessor service.
type ServiceConfig struct {
	DB     *sql.DB
	Loader *aggregate.Loader
	Cards  CardKnowledge
	Logger *slog.Logger
}

// Service provides the metric accessors.
type Service struct {
	db     *sql.DB
	loader *aggregate.Loader
	cards  CardKnowledge
	logger *slog.Logger
}

// NewService creates an accessor service.
func NewService(config ServiceConfig) (*Service, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("db is required")
	}
	if config.Loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Service{
		db:     config.DB,
		loader: config.Loader,
		cards:  config.Cards,
		logger: config.Logger,
	}, nil
}

// rowScanner is implemented by *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queryAll runs a query inside a fresh read of family and scans every row.
// The result is reset when the loader retries the read.
func queryAll[T any](ctx context.Context, s *Service, family, sqlText string, args []any, scan func(rowScanner) (T, error)) ([]T, error) {
	out := []T{}
	err := s.loader.Read(ctx, family, func(ctx context.Context) error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, sqlText, args...)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()
		for rows.Next() {
			v, err := scan(rows)
			if err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// queryValue runs a single-row query inside a fresh read of family.
func (s *Service) queryValue(ctx context.Context, family, sqlText string, args []any, dest ...any) error {
	return s.loader.Read(ctx, family, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, sqlText, args...).Scan(dest...)
	})
}

// cardsByName returns the card catalogue, or an empty map when no
// catalogue is configured.
func (s *Service) cardsByName(ctx context.Context) (map[string]*models.Card, error) {
	if s.cards == nil {
		return map[string]*models.Card{}, nil
	}
	cards, err := s.cards.CardsByName(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load card metadata: %w", err)
	}
	return cards, nil
}
