// Package models defines the core domain entities for the footoracle application.
// These models represent teams, fixtures, bookmaker odds, generated predictions,
// and detected clone pairs. All models include built-in validation to ensure data
// integrity throughout the application.
//
// Terminology (matching common football data vocabulary):
//   - Fixture: a scheduled or finished match between two teams. "fixture_id" is
//     the stable external identifier used across all tables and exports.
//   - Market: a bet type offered on a fixture (1X2, OU2.5, BTTS). Each market
//     has a fixed selection set.
package models

import "errors"

// Team represents a club tracked by the rating system. The ID is stable across
// ingestion runs; name and league may change as source data is refreshed.
type Team struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	League string `json:"league,omitempty"`
}

// Validate checks that all team fields are valid.
func (t *Team) Validate() error {
	if t.ID == "" {
		return errors.New("team ID must not be empty")
	}
	if t.Name == "" {
		return errors.New("team name must not be empty")
	}
	return nil
}
