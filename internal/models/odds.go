package models

import (
	"errors"
	"time"
)

// Supported betting markets and their selection sets.
const (
	Market1X2  = "1X2"
	MarketOU25 = "OU2.5"
	MarketBTTS = "BTTS"

	SelectionHome  = "H"
	SelectionDraw  = "D"
	SelectionAway  = "A"
	SelectionOver  = "Over"
	SelectionUnder = "Under"
	SelectionYes   = "Yes"
	SelectionNo    = "No"
)

// MarketSelections maps each supported market to its ordered selection set.
var MarketSelections = map[string][]string{
	Market1X2:  {SelectionHome, SelectionDraw, SelectionAway},
	MarketOU25: {SelectionOver, SelectionUnder},
	MarketBTTS: {SelectionYes, SelectionNo},
}

// OddsQuote is a single bookmaker price for one selection of one market on one
// fixture. Multiple quotes per (fixture, market, selection) are expected:
// different bookmakers and different observation times coexist.
type OddsQuote struct {
	FixtureID  string    `json:"fixture_id"`
	Bookmaker  string    `json:"bookmaker"`
	Market     string    `json:"market"`
	Selection  string    `json:"selection"`
	Price      float64   `json:"price"` // decimal odds
	ObservedAt time.Time `json:"observed_at"`
}

// Validate checks that all quote fields are valid.
func (q *OddsQuote) Validate() error {
	if q.FixtureID == "" {
		return errors.New("fixture ID must not be empty")
	}
	if q.Bookmaker == "" {
		return errors.New("bookmaker must not be empty")
	}
	selections, ok := MarketSelections[q.Market]
	if !ok {
		return errors.New("unknown market: " + q.Market)
	}
	valid := false
	for _, sel := range selections {
		if q.Selection == sel {
			valid = true
			break
		}
	}
	if !valid {
		return errors.New("selection " + q.Selection + " is not valid for market " + q.Market)
	}
	if q.Price < 1.0 {
		return errors.New("decimal price must be at least 1.0")
	}
	if q.ObservedAt.IsZero() {
		return errors.New("observed at must be set")
	}
	return nil
}
