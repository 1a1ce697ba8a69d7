// Package models holds the fact store row types written by ingestion.
package models

import "time"

// Competition type and source names the aggregates branch on.
const (
	CompetitionTypeLeague     = "League"
	CompetitionTypeGatherling = "Gatherling"

	SourceLeague     = "League"
	SourceGatherling = "Gatherling"
	SourceMTGO       = "MTGO"
)

// Season is a dimension row. A season runs from StartDate until the
// next season's StartDate.
type Season struct {
	ID        int64
	Code      string
	StartDate time.Time
}

// Archetype is a dimension row.
type Archetype struct {
	ID   int64
	Name string
}

// Person is a dimension row.
type Person struct {
	ID           int64
	MTGOUsername string
	Banned       bool
}

// Competition is a league or tournament decks are entered into.
type Competition struct {
	ID        int64
	Name      string
	Type      string // competition_type.name
	StartDate time.Time
	EndDate   time.Time
	TopN      int
}

// Deck is one decklist registered by a person, optionally in a competition.
type Deck struct {
	ID            int64
	Name          string
	PersonID      int64
	Source        string // source.name
	CompetitionID *int64
	ArchetypeID   *int64
	Identifier    string
	URL           string
	Finish        *int
	DecklistHash  string
	CreatedDate   time.Time
	UpdatedDate   time.Time
	Cards         []DeckCard
}

// DeckCard is one line of a decklist.
type DeckCard struct {
	Name      string
	N         int
	Sideboard bool
}

// MatchResult records a match between a deck and its opponent.
// OpponentDeckID is nil for a bye.
type MatchResult struct {
	Date           time.Time
	Elimination    int
	DeckID         int64
	Games          int
	OpponentDeckID *int64
	OpponentGames  int
}
