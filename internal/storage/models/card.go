package models

import "time"

// Card is static card metadata used to decorate card-centric statistics.
type Card struct {
	Name       string    `json:"name"`
	ManaCost   string    `json:"mana_cost"`
	CMC        float64   `json:"cmc"`
	TypeLine   string    `json:"type_line"`
	Colors     string    `json:"colors"`
	Rarity     string    `json:"rarity"`
	OracleText string    `json:"oracle_text"`
	UpdatedAt  time.Time `json:"-"`
}
