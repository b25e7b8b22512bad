package clone

import (
	"math"
	"strings"
	"testing"
	"time"
)

func testWeights() Weights {
	return Weights{
		RatingGap:  0.30,
		OddsShape:  0.25,
		RecentForm: 0.20,
		League:     0.15,
		HeadToHead: 0.10,
	}
}

func candidate(id, league string, diff float64, vec [3]float64) Candidate {
	return Candidate{
		FixtureID:   id,
		Label:       "Home " + id + " vs Away " + id,
		League:      league,
		RatingDiff:  diff,
		OddsVector:  vec,
		HomeFormPPG: 1.8,
		AwayFormPPG: 1.1,
	}
}

func TestScoreIdenticalCandidates(t *testing.T) {
	d := New(testWeights(), 0.80, 0.25)
	a := candidate("1", "E0", 120, [3]float64{0.48, 0.28, 0.24})
	b := candidate("2", "E0", 120, [3]float64{0.48, 0.28, 0.24})

	score, breakdown := d.Score(a, b)
	// All components are 1.0 except the neutral head-to-head fallback.
	want := 0.30 + 0.25 + 0.20 + 0.15 + 0.10*neutralH2H
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", score, want)
	}
	if breakdown.RatingGap != 1.0 || breakdown.OddsShape != 1.0 || breakdown.RecentForm != 1.0 || breakdown.League != 1.0 {
		t.Errorf("unexpected breakdown for identical candidates: %+v", breakdown)
	}
	if breakdown.HeadToHead != neutralH2H {
		t.Errorf("head-to-head without history = %v, want %v", breakdown.HeadToHead, neutralH2H)
	}
}

func TestScoreIsSymmetric(t *testing.T) {
	d := New(testWeights(), 0.80, 0.25)
	a := candidate("1", "E0", 180, [3]float64{0.55, 0.25, 0.20})
	b := candidate("2", "D1", -40, [3]float64{0.35, 0.30, 0.35})
	b.HomeFormPPG, b.AwayFormPPG = 0.9, 2.0
	a.H2H, a.HasH2H = [3]float64{0.5, 0.3, 0.2}, true
	b.H2H, b.HasH2H = [3]float64{0.2, 0.3, 0.5}, true

	sAB, _ := d.Score(a, b)
	sBA, _ := d.Score(b, a)
	if math.Abs(sAB-sBA) > 1e-12 {
		t.Errorf("score not symmetric: %v vs %v", sAB, sBA)
	}
}

func TestComponentSimilarities(t *testing.T) {
	if got := RatingGapSimilarity(200, 200); got != 1.0 {
		t.Errorf("equal diffs similarity = %v, want 1.0", got)
	}
	if RatingGapSimilarity(200, 0) >= RatingGapSimilarity(200, 150) {
		t.Error("larger rating-gap distance must score lower")
	}

	same := [3]float64{0.5, 0.3, 0.2}
	if got := OddsShapeSimilarity(same, same); got != 1.0 {
		t.Errorf("identical vectors similarity = %v, want 1.0", got)
	}
	near := [3]float64{0.49, 0.31, 0.20}
	far := [3]float64{0.20, 0.30, 0.50}
	if OddsShapeSimilarity(same, far) >= OddsShapeSimilarity(same, near) {
		t.Error("farther odds shape must score lower")
	}

	if FormSimilarity(1.8, 1.1, 1.8, 1.1) != 1.0 {
		t.Error("identical form must score 1.0")
	}
	if FormSimilarity(3.0, 0.0, 0.0, 3.0) >= FormSimilarity(1.8, 1.1, 1.7, 1.2) {
		t.Error("larger form distance must score lower")
	}

	hist := [3]float64{0.6, 0.2, 0.2}
	if H2HSimilarity(hist, hist, true, true) != 1.0 {
		t.Error("identical head-to-head history must score 1.0")
	}
	if got := H2HSimilarity(hist, hist, true, false); got != neutralH2H {
		t.Errorf("missing history similarity = %v, want neutral %v", got, neutralH2H)
	}
}

func TestLeagueSimilarity(t *testing.T) {
	d := New(testWeights(), 0.80, 0.25)
	if got := d.LeagueSimilarity("E0", "E0"); got != 1.0 {
		t.Errorf("same league = %v, want 1.0", got)
	}
	if got := d.LeagueSimilarity("E0", "SP1"); got != 0.25 {
		t.Errorf("cross league = %v, want 0.25", got)
	}
	// Two fixtures with unknown leagues must not count as a match.
	if got := d.LeagueSimilarity("", ""); got != 0.25 {
		t.Errorf("empty leagues = %v, want 0.25", got)
	}
}

func TestDetectPairsThresholdAndOrdering(t *testing.T) {
	d := New(testWeights(), 0.80, 0.25)
	vec := [3]float64{0.48, 0.28, 0.24}
	twins1 := candidate("10", "E0", 120, vec)
	twins2 := candidate("11", "E0", 120, vec)
	outlier := candidate("12", "SP1", -400, [3]float64{0.15, 0.25, 0.60})
	outlier.HomeFormPPG, outlier.AwayFormPPG = 0.4, 2.6

	at := time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC)
	pairs := d.DetectPairs([]Candidate{twins1, twins2, outlier}, at)

	if len(pairs) != 1 {
		t.Fatalf("expected 1 clone pair, got %d: %+v", len(pairs), pairs)
	}
	p := pairs[0]
	if p.FixtureA != "10" || p.FixtureB != "11" {
		t.Errorf("pair = (%s, %s), want (10, 11)", p.FixtureA, p.FixtureB)
	}
	if p.Similarity < 0.80 {
		t.Errorf("similarity %v below threshold", p.Similarity)
	}
	if !p.DetectedAt.Equal(at) {
		t.Errorf("DetectedAt = %v, want %v", p.DetectedAt, at)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("pair fails validation: %v", err)
	}
	if !strings.Contains(p.Recommendation, "rating gap") {
		t.Errorf("recommendation should name the dominant component, got %q", p.Recommendation)
	}
}

func TestDetectPairsNoSelfOrDoubleCounting(t *testing.T) {
	d := New(testWeights(), 0.0, 0.25) // zero threshold keeps every pair
	vec := [3]float64{0.40, 0.30, 0.30}
	cands := []Candidate{
		candidate("1", "E0", 0, vec),
		candidate("2", "E0", 0, vec),
		candidate("3", "E0", 0, vec),
	}
	pairs := d.DetectPairs(cands, time.Now())
	if len(pairs) != 3 {
		t.Fatalf("expected C(3,2)=3 pairs, got %d", len(pairs))
	}
	seen := make(map[string]bool)
	for _, p := range pairs {
		if p.FixtureA == p.FixtureB {
			t.Errorf("self-pair emitted: %s", p.FixtureA)
		}
		key := p.FixtureA + "|" + p.FixtureB
		rev := p.FixtureB + "|" + p.FixtureA
		if seen[key] || seen[rev] {
			t.Errorf("pair (%s, %s) counted twice", p.FixtureA, p.FixtureB)
		}
		seen[key] = true
	}
}

func TestDetectPairsDeterministic(t *testing.T) {
	d := New(testWeights(), 0.0, 0.25)
	cands := []Candidate{
		candidate("1", "E0", 10, [3]float64{0.45, 0.30, 0.25}),
		candidate("2", "E0", 30, [3]float64{0.44, 0.29, 0.27}),
		candidate("3", "D1", 500, [3]float64{0.70, 0.18, 0.12}),
	}
	at := time.Now()
	first := d.DetectPairs(cands, at)
	second := d.DetectPairs(cands, at)
	if len(first) != len(second) {
		t.Fatalf("run sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].FixtureA != second[i].FixtureA || first[i].FixtureB != second[i].FixtureB ||
			first[i].Similarity != second[i].Similarity ||
			first[i].Recommendation != second[i].Recommendation {
			t.Errorf("pair %d differs across runs", i)
		}
	}
	for i := 1; i < len(first); i++ {
		if first[i].Similarity > first[i-1].Similarity {
			t.Errorf("pairs not sorted by similarity at %d", i)
		}
	}
}
