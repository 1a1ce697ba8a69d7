package oracle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ramonehamilton/deckstats/internal/storage/models"
)

// ScryfallCard is the subset of a Scryfall card object the catalogue stores.
type ScryfallCard struct {
	ID         string     `json:"id"`
	OracleID   string     `json:"oracle_id"`
	Name       string     `json:"name"`
	Layout     string     `json:"layout"`
	ManaCost   string     `json:"mana_cost,omitempty"`
	CMC        float64    `json:"cmc"`
	TypeLine   string     `json:"type_line"`
	OracleText string     `json:"oracle_text,omitempty"`
	Colors     []string   `json:"colors,omitempty"`
	Rarity     string     `json:"rarity"`
	CardFaces  []CardFace `json:"card_faces,omitempty"`
}

// CardFace is one face of a multi-faced card.
type CardFace struct {
	Name       string   `json:"name"`
	ManaCost   string   `json:"mana_cost"`
	TypeLine   string   `json:"type_line"`
	OracleText string   `json:"oracle_text,omitempty"`
	Colors     []string `json:"colors,omitempty"`
}

// Model converts the card to the fact store's card metadata row. Multi-faced
// cards carry their face attributes joined with " // ".
func (c *ScryfallCard) Model(now time.Time) *models.Card {
	card := &models.Card{
		Name:       c.Name,
		ManaCost:   c.ManaCost,
		CMC:        c.CMC,
		TypeLine:   c.TypeLine,
		Colors:     strings.Join(c.Colors, ""),
		Rarity:     c.Rarity,
		OracleText: c.OracleText,
		UpdatedAt:  now,
	}
	if len(c.CardFaces) == 0 {
		return card
	}

	var costs, texts []string
	colors := c.Colors
	for _, f := range c.CardFaces {
		costs = append(costs, f.ManaCost)
		texts = append(texts, f.OracleText)
		if len(c.Colors) == 0 {
			colors = append(colors, f.Colors...)
		}
	}
	if card.ManaCost == "" {
		card.ManaCost = strings.Join(costs, " // ")
	}
	if card.OracleText == "" {
		card.OracleText = strings.Join(texts, "\n//\n")
	}
	if card.Colors == "" {
		card.Colors = uniqueColors(colors)
	}
	return card
}

// uniqueColors returns the colours in WUBRG order without repeats.
func uniqueColors(colors []string) string {
	var b strings.Builder
	for _, c := range []string{"W", "U", "B", "R", "G"} {
		for _, have := range colors {
			if have == c {
				b.WriteString(c)
				break
			}
		}
	}
	return b.String()
}

type cardIdentifier struct {
	Name string `json:"name,omitempty"`
}

type collectionRequest struct {
	Identifiers []cardIdentifier `json:"identifiers"`
}

type collectionResponse struct {
	Object   string           `json:"object"`
	NotFound []cardIdentifier `json:"not_found"`
	Data     []ScryfallCard   `json:"data"`
}

// APIError is an error object returned by the Scryfall API.
type APIError struct {
	Object   string   `json:"object"`
	Code     string   `json:"code"`
	Status   int      `json:"status"`
	Details  string   `json:"details"`
	Warnings []string `json:"warnings,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Details)
	}
	return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Code)
}

// NotFoundError is a 404 from the API.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
