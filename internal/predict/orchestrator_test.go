package predict

import (
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/mrenaud/footoracle/internal/models"
)

type fakeRatings struct {
	ratings       map[string]float64
	defaultRating float64
}

func (f *fakeRatings) Current(teamID string) float64 {
	if r, ok := f.ratings[teamID]; ok {
		return r
	}
	return f.defaultRating
}

type fakeOdds struct {
	quotes map[string][]models.OddsQuote
	err    error
}

func (f *fakeOdds) QuotesForFixture(fixtureID string) ([]models.OddsQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes[fixtureID], nil
}

func testFixture(id string) models.Match {
	return models.Match{
		FixtureID:  id,
		Date:       time.Date(2025, 8, 14, 19, 0, 0, 0, time.UTC),
		League:     "E0",
		HomeTeamID: "home-" + id,
		AwayTeamID: "away-" + id,
		HomeTeam:   "Home " + id,
		AwayTeam:   "Away " + id,
		Status:     models.StatusScheduled,
	}
}

func newTestOrchestrator(odds OddsSource, markets []string, emitWithoutOdds bool) *Orchestrator {
	ratings := &fakeRatings{defaultRating: 1500.0}
	return NewOrchestrator(
		ratings,
		odds,
		NewEvaluator([]string{"Pinnacle", "Bet365"}),
		testParams(),
		100.0,
		markets,
		emitWithoutOdds,
	)
}

func fullQuotes(fixtureID string) []models.OddsQuote {
	observed := time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC)
	var quotes []models.OddsQuote
	prices := map[string]map[string]float64{
		models.Market1X2:  {models.SelectionHome: 2.10, models.SelectionDraw: 3.40, models.SelectionAway: 3.80},
		models.MarketOU25: {models.SelectionOver: 1.90, models.SelectionUnder: 1.95},
		models.MarketBTTS: {models.SelectionYes: 1.80, models.SelectionNo: 2.00},
	}
	for market, sels := range prices {
		for sel, price := range sels {
			quotes = append(quotes, models.OddsQuote{
				FixtureID: fixtureID, Bookmaker: "Pinnacle", Market: market,
				Selection: sel, Price: price, ObservedAt: observed,
			})
		}
	}
	return quotes
}

func TestGenerateEmitsAllMarkets(t *testing.T) {
	fx := testFixture("100")
	odds := &fakeOdds{quotes: map[string][]models.OddsQuote{"100": fullQuotes("100")}}
	orch := newTestOrchestrator(odds, []string{models.Market1X2, models.MarketOU25, models.MarketBTTS}, true)

	preds, errs := orch.Generate([]models.Match{fx}, time.Now())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	// 3 + 2 + 2 selections
	if len(preds) != 7 {
		t.Fatalf("expected 7 predictions, got %d", len(preds))
	}
	for _, p := range preds {
		if err := p.Validate(); err != nil {
			t.Errorf("invalid prediction %s/%s: %v", p.Market, p.Selection, err)
		}
		if p.Odd == nil || p.Value == nil {
			t.Errorf("prediction %s/%s missing price despite available quotes", p.Market, p.Selection)
		}
		if p.Method != models.MethodElo {
			t.Errorf("method = %q, want %q", p.Method, models.MethodElo)
		}
	}
}

func TestGenerateProbabilityOnlyWhenNoOdds(t *testing.T) {
	fx := testFixture("200")
	quotes := []models.OddsQuote{}
	for _, q := range fullQuotes("200") {
		if q.Market != models.MarketOU25 {
			quotes = append(quotes, q)
		}
	}
	odds := &fakeOdds{quotes: map[string][]models.OddsQuote{"200": quotes}}
	orch := newTestOrchestrator(odds, []string{models.Market1X2, models.MarketOU25}, true)

	preds, errs := orch.Generate([]models.Match{fx}, time.Now())
	if len(preds) != 5 {
		t.Fatalf("expected 5 predictions (3 priced + 2 probability-only), got %d", len(preds))
	}

	ouCount := 0
	for _, p := range preds {
		if p.Market == models.MarketOU25 {
			ouCount++
			if p.Odd != nil || p.Value != nil {
				t.Errorf("OU2.5 %s should be probability-only", p.Selection)
			}
		} else if p.Odd == nil {
			t.Errorf("1X2 %s should be priced", p.Selection)
		}
	}
	if ouCount != 2 {
		t.Errorf("expected 2 probability-only OU records, got %d", ouCount)
	}

	// Exactly one NoQuoteAvailable event for the market, other markets unaffected.
	if len(errs) != 1 {
		t.Fatalf("expected 1 collected error, got %d: %v", len(errs), errs)
	}
	if errs[0].Market != models.MarketOU25 || !errors.Is(errs[0].Err, ErrNoQuoteAvailable) {
		t.Errorf("unexpected error record: %+v", errs[0])
	}
}

func TestGenerateSkipsUnpricedWhenFlagDisabled(t *testing.T) {
	fx := testFixture("300")
	odds := &fakeOdds{quotes: map[string][]models.OddsQuote{}}
	orch := newTestOrchestrator(odds, []string{models.Market1X2}, false)

	preds, errs := orch.Generate([]models.Match{fx}, time.Now())
	if len(preds) != 0 {
		t.Errorf("expected no predictions with emit_without_odds disabled, got %d", len(preds))
	}
	if len(errs) != 1 || !errors.Is(errs[0].Err, ErrNoQuoteAvailable) {
		t.Errorf("expected one NoQuoteAvailable event, got %v", errs)
	}
}

func TestGenerateContinuesPastFailingFixture(t *testing.T) {
	bad := testFixture("400")
	bad.HomeTeamID = "" // malformed
	good := testFixture("401")
	odds := &fakeOdds{quotes: map[string][]models.OddsQuote{"401": fullQuotes("401")}}
	orch := newTestOrchestrator(odds, []string{models.Market1X2}, true)

	preds, errs := orch.Generate([]models.Match{bad, good}, time.Now())
	if len(preds) != 3 {
		t.Errorf("good fixture should still yield 3 records, got %d", len(preds))
	}
	if len(errs) != 1 || errs[0].FixtureID != "400" {
		t.Errorf("expected one error for fixture 400, got %v", errs)
	}
}

func TestGenerateOddsSourceFailureDegradesToProbabilityOnly(t *testing.T) {
	fx := testFixture("500")
	odds := &fakeOdds{err: fmt.Errorf("db locked")}
	orch := newTestOrchestrator(odds, []string{models.Market1X2}, true)

	preds, errs := orch.Generate([]models.Match{fx}, time.Now())
	if len(preds) != 3 {
		t.Errorf("expected 3 probability-only records, got %d", len(preds))
	}
	if len(errs) != 2 {
		// one for the lookup failure, one NoQuoteAvailable for the market
		t.Errorf("expected 2 collected errors, got %d: %v", len(errs), errs)
	}
}

// predictionKey identifies a logical record independent of its generated ID.
func predictionKey(p models.Prediction) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", p.FixtureID, p.Method, p.Market, p.Selection, p.Date.Format("2006-01-02"))
}

func TestGenerateIsDeterministic(t *testing.T) {
	fixtures := []models.Match{testFixture("600"), testFixture("601")}
	odds := &fakeOdds{quotes: map[string][]models.OddsQuote{
		"600": fullQuotes("600"),
		"601": fullQuotes("601"),
	}}
	orch := newTestOrchestrator(odds, []string{models.Market1X2, models.MarketOU25, models.MarketBTTS}, true)

	at := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	first, _ := orch.Generate(fixtures, at)
	second, _ := orch.Generate(fixtures, at)

	if len(first) != len(second) {
		t.Fatalf("run sizes differ: %d vs %d", len(first), len(second))
	}

	keysOf := func(preds []models.Prediction) []string {
		keys := make([]string, len(preds))
		for i, p := range preds {
			keys[i] = predictionKey(p)
		}
		sort.Strings(keys)
		return keys
	}
	k1, k2 := keysOf(first), keysOf(second)
	for i := range k1 {
		if k1[i] != k2[i] {
			t.Fatalf("record sets differ at %d: %s vs %s", i, k1[i], k2[i])
		}
	}

	// No duplicate logical keys within one run.
	seen := make(map[string]bool)
	for _, k := range k1 {
		if seen[k] {
			t.Errorf("duplicate logical record %s", k)
		}
		seen[k] = true
	}

	// Probabilities must match exactly across runs.
	probOf := func(preds []models.Prediction) map[string]float64 {
		m := make(map[string]float64)
		for _, p := range preds {
			m[predictionKey(p)] = p.Prob
		}
		return m
	}
	p1, p2 := probOf(first), probOf(second)
	for k, v := range p1 {
		if p2[k] != v {
			t.Errorf("probability for %s differs across runs: %v vs %v", k, v, p2[k])
		}
	}
}
