package models

import (
	"errors"
	"time"
)

// MethodElo identifies predictions produced by the rating engine. Kept as a
// column so alternative methods can live in the same table later.
const MethodElo = "ELO"

// Prediction is one generated probability for one (fixture, market, selection),
// optionally paired with the best available bookmaker price and its expected
// value. Produced, never mutated; regenerating for the same day overwrites the
// prior record for the same (fixture, method, market, selection, date) key.
type Prediction struct {
	ID          string    `json:"id"`
	FixtureID   string    `json:"fixture_id"`
	Date        time.Time `json:"date"`
	League      string    `json:"league,omitempty"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	Method      string    `json:"method"`
	Market      string    `json:"market"`
	Selection   string    `json:"selection"`
	Prob        float64   `json:"prob"`
	Odd         *float64  `json:"odd"`   // nil when no quote was available
	Value       *float64  `json:"value"` // nil when no quote was available
	GeneratedAt time.Time `json:"generated_at"`
}

// IsValueBet reports whether the prediction clears the given value threshold.
// Predictions without a price are never value bets.
func (p *Prediction) IsValueBet(threshold float64) bool {
	return p.Value != nil && *p.Value > threshold
}

// Validate checks that all prediction fields are valid.
func (p *Prediction) Validate() error {
	if p.ID == "" {
		return errors.New("prediction ID must not be empty")
	}
	if p.FixtureID == "" {
		return errors.New("fixture ID must not be empty")
	}
	if p.Method == "" {
		return errors.New("method must not be empty")
	}
	selections, ok := MarketSelections[p.Market]
	if !ok {
		return errors.New("unknown market: " + p.Market)
	}
	valid := false
	for _, sel := range selections {
		if p.Selection == sel {
			valid = true
			break
		}
	}
	if !valid {
		return errors.New("selection " + p.Selection + " is not valid for market " + p.Market)
	}
	if p.Prob < 0.0 || p.Prob > 1.0 {
		return errors.New("probability must be between 0.0 and 1.0")
	}
	if p.Odd != nil && *p.Odd < 1.0 {
		return errors.New("decimal odd must be at least 1.0")
	}
	if (p.Odd == nil) != (p.Value == nil) {
		return errors.New("odd and value must be both set or both unset")
	}
	if p.GeneratedAt.IsZero() {
		return errors.New("generated at must be set")
	}
	return nil
}
