// Package people resolves usernames to people.
package people

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// AliasStore lists every known username keyed by name: MTGO usernames and
// registered aliases.
type AliasStore interface {
	Aliases(ctx context.Context) (map[string]int64, error)
}

// AliasService resolves a username or alias to a person ID. Names are matched
// case-insensitively. The alias table is read on first use and cached until
// Reload.
type AliasService struct {
	store  AliasStore
	logger *slog.Logger

	mu     sync.RWMutex
	byName map[string]int64
}

// NewAliasService creates an alias service over store.
func NewAliasService(store AliasStore, logger *slog.Logger) *AliasService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AliasService{store: store, logger: logger}
}

// Resolve returns the person known by name and whether one exists.
func (s *AliasService) Resolve(ctx context.Context, name string) (int64, bool, error) {
	byName, err := s.load(ctx)
	if err != nil {
		return 0, false, err
	}
	id, ok := byName[normalize(name)]
	return id, ok, nil
}

// Reload re-reads the alias table.
func (s *AliasService) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *AliasService) load(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	byName := s.byName
	s.mu.RUnlock()
	if byName != nil {
		return byName, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byName == nil {
		if err := s.loadLocked(ctx); err != nil {
			return nil, err
		}
	}
	return s.byName, nil
}

func (s *AliasService) loadLocked(ctx context.Context) error {
	aliases, err := s.store.Aliases(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]int64, len(aliases))
	for name, id := range aliases {
		key := normalize(name)
		if existing, ok := byName[key]; ok && existing != id {
			s.logger.Warn("Username maps to more than one person", "name", name, "personId", id, "otherPersonId", existing)
			if existing < id {
				continue
			}
		}
		byName[key] = id
	}
	s.byName = byName
	s.logger.Debug("Loaded aliases", "count", len(byName))
	return nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
