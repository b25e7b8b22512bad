// Package rating implements the Elo-style team skill rating system: a
// versioned per-team rating store and an engine that folds finished match
// results into updated ratings.
//
// The update rule is the standard logistic formula. For a home team with
// rating H and an away team with rating A, the home expected score is
//
//	E = 1 / (1 + 10^(−((H+homeAdvantage)−A)/400))
//
// and each new rating is old + K × (actual − expected), with actual being
// 1.0 / 0.5 / 0.0 from each side's perspective. The two deltas are exact
// mirrors, so rating mass is conserved per match.
package rating

import (
	"sort"
	"time"
)

// Entry is one historical rating value for a team. History is append-only and
// ordered by timestamp; the current rating is always the last entry.
type Entry struct {
	AsOf  time.Time `json:"as_of"`
	Value float64   `json:"value"`
}

// Store holds current and historical ratings per team. Teams unseen before
// are lazily initialized at the default rating on first read.
type Store struct {
	defaultRating float64
	history       map[string][]Entry
}

// NewStore creates an empty rating store with the given default rating.
func NewStore(defaultRating float64) *Store {
	return &Store{
		defaultRating: defaultRating,
		history:       make(map[string][]Entry),
	}
}

// Current returns the team's latest rating, or the default for unseen teams.
// The current value is derived from history rather than tracked separately,
// so snapshot and latest value cannot drift apart.
func (s *Store) Current(teamID string) float64 {
	entries := s.history[teamID]
	if len(entries) == 0 {
		return s.defaultRating
	}
	return entries[len(entries)-1].Value
}

// Seen reports whether the team has any rating history.
func (s *Store) Seen(teamID string) bool {
	return len(s.history[teamID]) > 0
}

// Append adds a new historical entry for a team. Prior entries are never
// mutated.
func (s *Store) Append(teamID string, asOf time.Time, value float64) {
	s.history[teamID] = append(s.history[teamID], Entry{AsOf: asOf, Value: value})
}

// History returns a copy of the team's rating history in insertion order.
func (s *Store) History(teamID string) []Entry {
	entries := s.history[teamID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Snapshot returns the current rating of every seen team.
func (s *Store) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(s.history))
	for teamID := range s.history {
		out[teamID] = s.Current(teamID)
	}
	return out
}

// TeamIDs returns all seen team IDs sorted lexicographically.
func (s *Store) TeamIDs() []string {
	ids := make([]string, 0, len(s.history))
	for id := range s.history {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
