package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// PersonRepository handles people and their username aliases.
type PersonRepository interface {
	// Create inserts a person and sets its ID.
	Create(ctx context.Context, person *models.Person) error

	// AddAlias maps an alternative username to a person.
	AddAlias(ctx context.Context, personID int64, alias string) error

	// Aliases returns every known username (aliases and MTGO usernames) keyed by name.
	Aliases(ctx context.Context) (map[string]int64, error)

	// Delete removes a person.
	Delete(ctx context.Context, id int64) error
}

type personRepository struct {
	db *sql.DB
}

// NewPersonRepository creates a new person repository.
func NewPersonRepository(db *sql.DB) PersonRepository {
	return &personRepository{db: db}
}

func (r *personRepository) Create(ctx context.Context, person *models.Person) error {
	var username any
	if person.MTGOUsername != "" {
		username = person.MTGOUsername
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO person (mtgo_username, banned) VALUES (?, ?)`,
		username, person.Banned)
	if err != nil {
		return fmt.Errorf("failed to create person %s: %w", person.MTGOUsername, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get person id: %w", err)
	}
	person.ID = id
	return nil
}

func (r *personRepository) AddAlias(ctx context.Context, personID int64, alias string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO person_alias (alias, person_id) VALUES (?, ?)
		 ON CONFLICT (alias) DO UPDATE SET person_id = excluded.person_id`,
		alias, personID)
	if err != nil {
		return fmt.Errorf("failed to add alias %s: %w", alias, err)
	}
	return nil
}

func (r *personRepository) Aliases(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mtgo_username, id FROM person WHERE mtgo_username IS NOT NULL
		UNION ALL
		SELECT alias, person_id FROM person_alias
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	aliases := make(map[string]int64)
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases[name] = id
	}
	return aliases, rows.Err()
}

func (r *personRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM person WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete person %d: %w", id, err)
	}
	return nil
}
