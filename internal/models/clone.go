package models

import (
	"errors"
	"time"
)

// SimilarityBreakdown holds the independently normalized [0,1] component
// scores that make up a clone pair's aggregate similarity.
type SimilarityBreakdown struct {
	RatingGap  float64 `json:"rating_gap"`
	OddsShape  float64 `json:"odds_shape"`
	RecentForm float64 `json:"recent_form"`
	League     float64 `json:"league"`
	HeadToHead float64 `json:"head_to_head"`
}

// ClonePair is a pair of same-day fixtures judged similar enough to warrant a
// combined betting note. Derived per run; persisted per day so the dashboard
// can serve the latest detection even from a separate process.
type ClonePair struct {
	FixtureA       string              `json:"fixture_a"`
	FixtureB       string              `json:"fixture_b"`
	LabelA         string              `json:"label_a"` // "Home vs Away" for display
	LabelB         string              `json:"label_b"`
	Similarity     float64             `json:"similarity"`
	Breakdown      SimilarityBreakdown `json:"breakdown"`
	Recommendation string              `json:"recommendation"`
	DetectedAt     time.Time           `json:"detected_at"`
}

// Validate checks that all clone pair fields are valid.
func (c *ClonePair) Validate() error {
	if c.FixtureA == "" || c.FixtureB == "" {
		return errors.New("both fixture IDs must not be empty")
	}
	if c.FixtureA == c.FixtureB {
		return errors.New("a fixture cannot be a clone of itself")
	}
	if c.Similarity < 0.0 || c.Similarity > 1.0 {
		return errors.New("similarity must be between 0.0 and 1.0")
	}
	if c.Recommendation == "" {
		return errors.New("recommendation must not be empty")
	}
	return nil
}
