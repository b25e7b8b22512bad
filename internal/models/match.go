package models

import (
	"errors"
	"time"
)

// Match statuses as stored in the matches table. Anything other than
// StatusFinished is ignored by the rating engine.
const (
	StatusScheduled = "NS"
	StatusFinished  = "FT"
	StatusPostponed = "PST"
	StatusCancelled = "CANC"
)

// Match represents a fixture between two teams. Created on ingestion, updated
// in place when the status or score becomes known, never deleted.
type Match struct {
	FixtureID  string    `json:"fixture_id"`
	Date       time.Time `json:"date"`
	League     string    `json:"league,omitempty"`
	Season     string    `json:"season,omitempty"`
	HomeTeamID string    `json:"home_team_id"`
	AwayTeamID string    `json:"away_team_id"`
	HomeTeam   string    `json:"home_team"`
	AwayTeam   string    `json:"away_team"`
	HomeGoals  *int      `json:"home_goals,omitempty"`
	AwayGoals  *int      `json:"away_goals,omitempty"`
	Status     string    `json:"status"`
	Result     string    `json:"result,omitempty"` // "H", "D" or "A", derived from the score
}

// Finished reports whether the match has a final result.
func (m *Match) Finished() bool {
	return m.Status == StatusFinished
}

// DeriveResult returns "H", "D" or "A" from the final score, or "" when the
// score is not yet known.
func (m *Match) DeriveResult() string {
	if m.HomeGoals == nil || m.AwayGoals == nil {
		return ""
	}
	switch {
	case *m.HomeGoals > *m.AwayGoals:
		return "H"
	case *m.HomeGoals < *m.AwayGoals:
		return "A"
	default:
		return "D"
	}
}

// Validate checks that all match fields are valid.
func (m *Match) Validate() error {
	if m.FixtureID == "" {
		return errors.New("fixture ID must not be empty")
	}
	if m.HomeTeamID == "" || m.AwayTeamID == "" {
		return errors.New("both team IDs must not be empty")
	}
	if m.HomeTeamID == m.AwayTeamID {
		return errors.New("a team cannot play itself")
	}
	if m.Date.IsZero() {
		return errors.New("match date must be set")
	}
	if m.HomeGoals != nil && *m.HomeGoals < 0 {
		return errors.New("home goals must not be negative")
	}
	if m.AwayGoals != nil && *m.AwayGoals < 0 {
		return errors.New("away goals must not be negative")
	}
	if m.Status == StatusFinished && (m.HomeGoals == nil || m.AwayGoals == nil) {
		return errors.New("finished match must have a final score")
	}
	return nil
}
