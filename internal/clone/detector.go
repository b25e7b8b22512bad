// Package clone scores pairs of same-day fixtures by weighted similarity to
// surface near-duplicate betting situations.
//
// Each component score is independently normalized to [0,1] and the aggregate
// is their weighted sum. Distances collapse to similarities through the same
// bounded curve throughout: exp(−distance/scale). All scoring is pure; the
// caller assembles Candidate inputs from storage beforehand.
package clone

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mrenaud/footoracle/internal/models"
)

// Fixed normalization scales for the component distances.
const (
	ratingGapScale = 100.0 // rating points
	oddsShapeScale = 0.25  // L2 distance between probability vectors
	formScale      = 1.5   // points-per-game, summed over both sides
	h2hScale       = 1.0   // L1 distance between outcome distributions
	neutralH2H     = 0.5   // used when either pair lacks head-to-head history
)

// Candidate is one fixture prepared for pairwise comparison. RatingDiff
// includes home advantage; OddsVector is the normalized implied 1X2
// probability vector from the best available prices, falling back to the
// model's own vector when the fixture has no odds.
type Candidate struct {
	FixtureID   string
	Label       string // "Home vs Away", for recommendations and display
	League      string
	RatingDiff  float64
	OddsVector  [3]float64
	HomeFormPPG float64
	AwayFormPPG float64
	H2H         [3]float64 // historical H/D/A outcome distribution of the two teams
	HasH2H      bool
}

// Weights are the similarity component weights; they must sum to 1.0 (the
// config layer validates this).
type Weights struct {
	RatingGap  float64
	OddsShape  float64
	RecentForm float64
	League     float64
	HeadToHead float64
}

// Detector finds clone pairs among a day's fixtures.
type Detector struct {
	weights        Weights
	threshold      float64
	leagueMismatch float64
}

// New creates a detector with the given weights, aggregate threshold, and
// cross-league similarity constant.
func New(weights Weights, threshold, leagueMismatch float64) *Detector {
	return &Detector{
		weights:        weights,
		threshold:      threshold,
		leagueMismatch: leagueMismatch,
	}
}

// boundedSimilarity maps a non-negative distance to (0,1] with exp decay.
func boundedSimilarity(distance, scale float64) float64 {
	if scale < 1e-6 {
		scale = 1e-6
	}
	return math.Exp(-math.Abs(distance) / scale)
}

// RatingGapSimilarity compares the two fixtures' rating differences.
func RatingGapSimilarity(diffA, diffB float64) float64 {
	return boundedSimilarity(diffA-diffB, ratingGapScale)
}

// OddsShapeSimilarity compares implied probability vectors by L2 distance.
func OddsShapeSimilarity(a, b [3]float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return boundedSimilarity(math.Sqrt(sum), oddsShapeScale)
}

// FormSimilarity compares home and away trailing points-per-game pairwise.
func FormSimilarity(homeA, awayA, homeB, awayB float64) float64 {
	return boundedSimilarity(math.Abs(homeA-homeB)+math.Abs(awayA-awayB), formScale)
}

// LeagueSimilarity is 1.0 for the same league and a fixed lower constant
// otherwise.
func (d *Detector) LeagueSimilarity(leagueA, leagueB string) float64 {
	if leagueA != "" && leagueA == leagueB {
		return 1.0
	}
	return d.leagueMismatch
}

// H2HSimilarity compares head-to-head outcome distributions by L1 distance,
// falling back to a neutral value when either side has no history.
func H2HSimilarity(a, b [3]float64, hasA, hasB bool) float64 {
	if !hasA || !hasB {
		return neutralH2H
	}
	var l1 float64
	for i := range a {
		l1 += math.Abs(a[i] - b[i])
	}
	return boundedSimilarity(l1, h2hScale)
}

// componentNames ordering doubles as the deterministic tie-break when two
// components contribute equally.
var componentNames = [5]string{"rating gap", "odds shape", "recent form", "league context", "head-to-head history"}

// Score computes the weighted aggregate similarity and its breakdown for one
// unordered pair. Symmetric: Score(a, b) == Score(b, a).
func (d *Detector) Score(a, b Candidate) (float64, models.SimilarityBreakdown) {
	breakdown := models.SimilarityBreakdown{
		RatingGap:  RatingGapSimilarity(a.RatingDiff, b.RatingDiff),
		OddsShape:  OddsShapeSimilarity(a.OddsVector, b.OddsVector),
		RecentForm: FormSimilarity(a.HomeFormPPG, a.AwayFormPPG, b.HomeFormPPG, b.AwayFormPPG),
		League:     d.LeagueSimilarity(a.League, b.League),
		HeadToHead: H2HSimilarity(a.H2H, b.H2H, a.HasH2H, b.HasH2H),
	}
	score := d.weights.RatingGap*breakdown.RatingGap +
		d.weights.OddsShape*breakdown.OddsShape +
		d.weights.RecentForm*breakdown.RecentForm +
		d.weights.League*breakdown.League +
		d.weights.HeadToHead*breakdown.HeadToHead
	return score, breakdown
}

// dominantComponent names the component with the largest weighted
// contribution, ties going to the earlier name in the fixed order.
func (d *Detector) dominantComponent(b models.SimilarityBreakdown) string {
	contributions := [5]float64{
		d.weights.RatingGap * b.RatingGap,
		d.weights.OddsShape * b.OddsShape,
		d.weights.RecentForm * b.RecentForm,
		d.weights.League * b.League,
		d.weights.HeadToHead * b.HeadToHead,
	}
	best := 0
	for i := 1; i < len(contributions); i++ {
		if contributions[i] > contributions[best] {
			best = i
		}
	}
	return componentNames[best]
}

// DetectPairs scores all unordered pairs among the day's candidates and
// returns those at or above the threshold, sorted by similarity descending.
// A fixture is never paired with itself and (A,B)/(B,A) are not
// double-counted. O(n²) in fixture count, which daily fixture volumes keep
// trivial.
func (d *Detector) DetectPairs(candidates []Candidate, detectedAt time.Time) []models.ClonePair {
	var pairs []models.ClonePair
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			if a.FixtureID == b.FixtureID {
				continue
			}
			score, breakdown := d.Score(a, b)
			if score < d.threshold {
				continue
			}
			pairs = append(pairs, models.ClonePair{
				FixtureA:   a.FixtureID,
				FixtureB:   b.FixtureID,
				LabelA:     a.Label,
				LabelB:     b.Label,
				Similarity: score,
				Breakdown:  breakdown,
				Recommendation: fmt.Sprintf(
					"%s mirrors %s (similarity %.2f, driven by %s); consider treating the two bets as one exposure",
					a.Label, b.Label, score, d.dominantComponent(breakdown)),
				DetectedAt: detectedAt,
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Similarity != pairs[j].Similarity {
			return pairs[i].Similarity > pairs[j].Similarity
		}
		if pairs[i].FixtureA != pairs[j].FixtureA {
			return pairs[i].FixtureA < pairs[j].FixtureA
		}
		return pairs[i].FixtureB < pairs[j].FixtureB
	})
	return pairs
}
