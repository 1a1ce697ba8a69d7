package stats

import (
	"encoding/json"
	"math"
	"strconv"
)

// WinPercent is a derived display value. It has no value when a row has no
// decided matches, which is distinct from a 0% record.
type WinPercent struct {
	value float64
	valid bool
}

// NewWinPercent computes wins / (wins + losses) as a percentage rounded to
// one decimal place.
func NewWinPercent(wins, losses int) WinPercent {
	if wins+losses <= 0 {
		return WinPercent{}
	}
	pct := float64(wins) / float64(wins+losses) * 100
	return WinPercent{value: math.Round(pct*10) / 10, valid: true}
}

// Value returns the percentage and whether there is one.
func (w WinPercent) Value() (float64, bool) {
	return w.value, w.valid
}

// Valid reports whether the row had decided matches.
func (w WinPercent) Valid() bool {
	return w.valid
}

// String renders the percentage with one decimal, or "" when there is none.
func (w WinPercent) String() string {
	if !w.valid {
		return ""
	}
	return strconv.FormatFloat(w.value, 'f', 1, 64)
}

// MarshalJSON renders the percentage as a number, or null when there is none.
func (w WinPercent) MarshalJSON() ([]byte, error) {
	if !w.valid {
		return []byte("null"), nil
	}
	return json.Marshal(w.value)
}

// UnmarshalJSON accepts a number or null.
func (w *WinPercent) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*w = WinPercent{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*w = WinPercent{value: v, valid: true}
	return nil
}
