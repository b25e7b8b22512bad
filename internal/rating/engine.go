package rating

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidResult marks a malformed match result: negative or missing goals
// on a match reported as finished.
var ErrInvalidResult = errors.New("invalid match result")

// ErrOutOfOrder marks a result dated before one already applied. The engine
// is a strict left-to-right fold over chronologically sorted results; callers
// must sort, the engine does not re-sort.
var ErrOutOfOrder = errors.New("result out of chronological order")

// Result is a finished match as consumed by the engine.
type Result struct {
	FixtureID  string
	HomeTeamID string
	AwayTeamID string
	HomeGoals  int
	AwayGoals  int
	Date       time.Time
}

// Update is the before/after rating snapshot produced by applying one result.
type Update struct {
	FixtureID    string
	Date         time.Time
	HomePre      float64
	AwayPre      float64
	HomePost     float64
	AwayPost     float64
	ExpectedHome float64
}

// Engine folds finished match results into the rating store. Not safe for
// concurrent use; each result touches two teams jointly.
type Engine struct {
	store         *Store
	kFactor       float64
	homeAdvantage float64
	lastDate      time.Time
}

// NewEngine creates a rating engine writing into the given store.
func NewEngine(store *Store, kFactor, homeAdvantage float64) *Engine {
	return &Engine{
		store:         store,
		kFactor:       kFactor,
		homeAdvantage: homeAdvantage,
	}
}

// Store returns the underlying rating store.
func (e *Engine) Store() *Store {
	return e.store
}

// ExpectedScore is the logistic win expectation of a team rated ratingA
// against a team rated ratingB. ExpectedScore(a, b) + ExpectedScore(b, a) == 1.
func ExpectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}

// actualScores maps a final score to the (home, away) actual values.
func actualScores(homeGoals, awayGoals int) (float64, float64) {
	switch {
	case homeGoals > awayGoals:
		return 1.0, 0.0
	case homeGoals < awayGoals:
		return 0.0, 1.0
	default:
		return 0.5, 0.5
	}
}

// ApplyResult updates both teams' ratings for one finished match and appends
// one historical snapshot per team. Results must arrive in non-decreasing
// date order; out-of-order input is rejected rather than silently corrupting
// history.
func (e *Engine) ApplyResult(r Result) (Update, error) {
	if r.HomeGoals < 0 || r.AwayGoals < 0 {
		return Update{}, fmt.Errorf("%w: fixture %s has negative goals (%d-%d)",
			ErrInvalidResult, r.FixtureID, r.HomeGoals, r.AwayGoals)
	}
	if r.HomeTeamID == "" || r.AwayTeamID == "" || r.HomeTeamID == r.AwayTeamID {
		return Update{}, fmt.Errorf("%w: fixture %s has invalid team IDs", ErrInvalidResult, r.FixtureID)
	}
	if !e.lastDate.IsZero() && r.Date.Before(e.lastDate) {
		return Update{}, fmt.Errorf("%w: fixture %s dated %s before last applied %s",
			ErrOutOfOrder, r.FixtureID, r.Date.Format("2006-01-02"), e.lastDate.Format("2006-01-02"))
	}

	homePre := e.store.Current(r.HomeTeamID)
	awayPre := e.store.Current(r.AwayTeamID)

	expectedHome := ExpectedScore(homePre+e.homeAdvantage, awayPre)
	expectedAway := 1.0 - expectedHome
	actualHome, actualAway := actualScores(r.HomeGoals, r.AwayGoals)

	homePost := homePre + e.kFactor*(actualHome-expectedHome)
	awayPost := awayPre + e.kFactor*(actualAway-expectedAway)

	e.store.Append(r.HomeTeamID, r.Date, homePost)
	e.store.Append(r.AwayTeamID, r.Date, awayPost)
	e.lastDate = r.Date

	return Update{
		FixtureID:    r.FixtureID,
		Date:         r.Date,
		HomePre:      homePre,
		AwayPre:      awayPre,
		HomePost:     homePost,
		AwayPost:     awayPost,
		ExpectedHome: expectedHome,
	}, nil
}

// ApplyAll folds a chronologically sorted result sequence and returns one
// update per applied result. It stops at the first error: rating history is
// meaningless past a corrupt or misordered result.
func (e *Engine) ApplyAll(results []Result) ([]Update, error) {
	updates := make([]Update, 0, len(results))
	for _, r := range results {
		u, err := e.ApplyResult(r)
		if err != nil {
			return updates, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}
