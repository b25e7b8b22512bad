package storage

import (
	"math"
	"testing"
	"time"

	"github.com/mrenaud/footoracle/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func finishedMatch(id string, date time.Time, homeID, awayID string, hg, ag int) models.Match {
	return models.Match{
		FixtureID:  id,
		Date:       date,
		League:     "E0",
		Season:     "2025-2026",
		HomeTeamID: homeID,
		AwayTeamID: awayID,
		HomeTeam:   "Team " + homeID,
		AwayTeam:   "Team " + awayID,
		HomeGoals:  intPtr(hg),
		AwayGoals:  intPtr(ag),
		Status:     models.StatusFinished,
	}
}

func TestUpsertMatchDerivesResultAndUpdatesInPlace(t *testing.T) {
	s := newTestStorage(t)

	kickoff := time.Date(2025, 8, 14, 19, 0, 0, 0, time.UTC)
	scheduled := models.Match{
		FixtureID:  "fx-1",
		Date:       kickoff,
		League:     "E0",
		HomeTeamID: "t1",
		AwayTeamID: "t2",
		HomeTeam:   "Team t1",
		AwayTeam:   "Team t2",
		Status:     models.StatusScheduled,
	}
	if err := s.UpsertMatch(scheduled); err != nil {
		t.Fatalf("inserting scheduled match: %v", err)
	}

	fixtures, err := s.FixturesOn(day(2025, 8, 14))
	if err != nil {
		t.Fatalf("FixturesOn: %v", err)
	}
	if len(fixtures) != 1 || fixtures[0].FixtureID != "fx-1" {
		t.Fatalf("expected the scheduled fixture, got %+v", fixtures)
	}
	if !fixtures[0].Date.Equal(kickoff) {
		t.Errorf("kickoff round-trip = %v, want %v", fixtures[0].Date, kickoff)
	}

	finished := scheduled
	finished.Status = models.StatusFinished
	finished.HomeGoals = intPtr(2)
	finished.AwayGoals = intPtr(1)
	if err := s.UpsertMatch(finished); err != nil {
		t.Fatalf("updating match to finished: %v", err)
	}

	// No longer a scheduled fixture for the day.
	fixtures, err = s.FixturesOn(day(2025, 8, 14))
	if err != nil {
		t.Fatalf("FixturesOn after finish: %v", err)
	}
	if len(fixtures) != 0 {
		t.Errorf("finished match still listed as scheduled: %+v", fixtures)
	}

	done, err := s.FinishedMatchesAsc()
	if err != nil {
		t.Fatalf("FinishedMatchesAsc: %v", err)
	}
	if len(done) != 1 {
		t.Fatalf("expected 1 finished match, got %d", len(done))
	}
	if done[0].Result != "H" {
		t.Errorf("result = %q, want derived H", done[0].Result)
	}
	if done[0].HomeGoals == nil || *done[0].HomeGoals != 2 {
		t.Errorf("home goals did not round-trip: %+v", done[0].HomeGoals)
	}
}

func TestFinishedMatchesChronologicalOrder(t *testing.T) {
	s := newTestStorage(t)
	base := time.Date(2025, 8, 1, 15, 0, 0, 0, time.UTC)
	// Inserted out of order on purpose.
	for _, m := range []models.Match{
		finishedMatch("fx-c", base.AddDate(0, 0, 14), "t1", "t2", 1, 1),
		finishedMatch("fx-a", base, "t1", "t2", 2, 0),
		finishedMatch("fx-b", base.AddDate(0, 0, 7), "t2", "t1", 0, 3),
	} {
		if err := s.UpsertMatch(m); err != nil {
			t.Fatalf("upserting %s: %v", m.FixtureID, err)
		}
	}

	done, err := s.FinishedMatchesAsc()
	if err != nil {
		t.Fatalf("FinishedMatchesAsc: %v", err)
	}
	want := []string{"fx-a", "fx-b", "fx-c"}
	for i, id := range want {
		if done[i].FixtureID != id {
			t.Errorf("position %d = %s, want %s", i, done[i].FixtureID, id)
		}
	}
}

func TestSaveOddsKeepsLatestQuote(t *testing.T) {
	s := newTestStorage(t)
	early := time.Date(2025, 8, 14, 8, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)

	first := models.OddsQuote{
		FixtureID: "fx-1", Bookmaker: "Pinnacle", Market: models.Market1X2,
		Selection: models.SelectionHome, Price: 1.90, ObservedAt: late,
	}
	if err := s.SaveOdds([]models.OddsQuote{first}); err != nil {
		t.Fatalf("saving first quote: %v", err)
	}

	// A stale observation must not clobber the fresher price.
	stale := first
	stale.Price = 2.50
	stale.ObservedAt = early
	if err := s.SaveOdds([]models.OddsQuote{stale}); err != nil {
		t.Fatalf("saving stale quote: %v", err)
	}

	quotes, err := s.QuotesForFixture("fx-1")
	if err != nil {
		t.Fatalf("QuotesForFixture: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	if quotes[0].Price != 1.90 {
		t.Errorf("price = %v, stale quote overwrote fresher one", quotes[0].Price)
	}

	// A fresher observation does replace.
	fresh := first
	fresh.Price = 1.95
	fresh.ObservedAt = late.Add(time.Hour)
	if err := s.SaveOdds([]models.OddsQuote{fresh}); err != nil {
		t.Fatalf("saving fresh quote: %v", err)
	}
	quotes, _ = s.QuotesForFixture("fx-1")
	if len(quotes) != 1 || quotes[0].Price != 1.95 {
		t.Errorf("fresh quote not applied: %+v", quotes)
	}
}

func TestRatingHistoryAndCurrentRatings(t *testing.T) {
	s := newTestStorage(t)
	t1 := day(2025, 8, 1)

	for i, r := range []float64{1510, 1525, 1518} {
		asOf := t1.AddDate(0, 0, i*7)
		if err := s.AppendRating("team-a", "fx-"+string(rune('a'+i)), asOf, r); err != nil {
			t.Fatalf("appending rating: %v", err)
		}
	}
	if err := s.AppendRating("team-b", "fx-a", t1, 1490); err != nil {
		t.Fatalf("appending rating: %v", err)
	}
	if err := s.UpsertTeam(models.Team{ID: "team-a", Name: "Alpha", League: "E0"}); err != nil {
		t.Fatalf("upserting team: %v", err)
	}

	ratings, err := s.CurrentRatings()
	if err != nil {
		t.Fatalf("CurrentRatings: %v", err)
	}
	if ratings["team-a"] != 1518 {
		t.Errorf("team-a current = %v, want latest 1518", ratings["team-a"])
	}
	if ratings["team-b"] != 1490 {
		t.Errorf("team-b current = %v, want 1490", ratings["team-b"])
	}

	top, err := s.TopRatings(10)
	if err != nil {
		t.Fatalf("TopRatings: %v", err)
	}
	if len(top) != 2 || top[0].TeamID != "team-a" || top[0].Name != "Alpha" {
		t.Errorf("unexpected top ratings: %+v", top)
	}
	if top[1].Name != "team-b" {
		t.Errorf("team without a teams row should fall back to its ID, got %q", top[1].Name)
	}

	if err := s.ClearRatingHistory(); err != nil {
		t.Fatalf("ClearRatingHistory: %v", err)
	}
	ratings, _ = s.CurrentRatings()
	if len(ratings) != 0 {
		t.Errorf("history not cleared: %v", ratings)
	}
}

func TestSavePredictionsIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	generated := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	pred := models.Prediction{
		ID:          "pred-1",
		FixtureID:   "fx-1",
		Date:        time.Date(2025, 8, 14, 19, 0, 0, 0, time.UTC),
		League:      "E0",
		HomeTeam:    "Alpha",
		AwayTeam:    "Beta",
		Method:      models.MethodElo,
		Market:      models.Market1X2,
		Selection:   models.SelectionHome,
		Prob:        0.45,
		Odd:         floatPtr(2.20),
		Value:       floatPtr(-0.01),
		GeneratedAt: generated,
	}
	if err := s.SavePredictions([]models.Prediction{pred}); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// A re-run with a new ID and updated numbers overwrites the same logical
	// record instead of duplicating it.
	rerun := pred
	rerun.ID = "pred-2"
	rerun.Prob = 0.47
	rerun.Odd = floatPtr(2.10)
	rerun.Value = floatPtr(-0.013)
	rerun.GeneratedAt = generated.Add(time.Hour)
	if err := s.SavePredictions([]models.Prediction{rerun}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	preds, err := s.PredictionsOn(day(2025, 8, 14))
	if err != nil {
		t.Fatalf("PredictionsOn: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("expected 1 record after re-run, got %d", len(preds))
	}
	got := preds[0]
	if got.ID != "pred-1" {
		t.Errorf("ID = %q, the first record's ID should survive re-runs", got.ID)
	}
	if got.Prob != 0.47 {
		t.Errorf("prob = %v, want updated 0.47", got.Prob)
	}
	if got.Odd == nil || *got.Odd != 2.10 {
		t.Errorf("odd not updated: %+v", got.Odd)
	}
}

func TestPredictionsProbabilityOnlyRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	pred := models.Prediction{
		ID:          "pred-3",
		FixtureID:   "fx-2",
		Date:        time.Date(2025, 8, 14, 19, 0, 0, 0, time.UTC),
		HomeTeam:    "Alpha",
		AwayTeam:    "Beta",
		Method:      models.MethodElo,
		Market:      models.MarketBTTS,
		Selection:   models.SelectionYes,
		Prob:        0.55,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.SavePredictions([]models.Prediction{pred}); err != nil {
		t.Fatalf("saving probability-only prediction: %v", err)
	}
	preds, err := s.PredictionsOn(day(2025, 8, 14))
	if err != nil {
		t.Fatalf("PredictionsOn: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("expected 1 record, got %d", len(preds))
	}
	if preds[0].Odd != nil || preds[0].Value != nil {
		t.Errorf("odd/value should stay nil, got %+v / %+v", preds[0].Odd, preds[0].Value)
	}
}

func TestRecentForm(t *testing.T) {
	s := newTestStorage(t)
	base := day(2025, 7, 1)
	// team-a: win, draw, loss, then an old win that falls outside the window.
	results := []models.Match{
		finishedMatch("f1", base.AddDate(0, 0, 21), "team-a", "x1", 2, 0), // W
		finishedMatch("f2", base.AddDate(0, 0, 14), "x2", "team-a", 1, 1), // D
		finishedMatch("f3", base.AddDate(0, 0, 7), "team-a", "x3", 0, 1),  // L
		finishedMatch("f4", base, "team-a", "x4", 3, 0),                   // outside window
	}
	for _, m := range results {
		if err := s.UpsertMatch(m); err != nil {
			t.Fatalf("upserting %s: %v", m.FixtureID, err)
		}
	}

	ppg, played, err := s.RecentForm("team-a", 3)
	if err != nil {
		t.Fatalf("RecentForm: %v", err)
	}
	if played != 3 {
		t.Errorf("played = %d, want 3", played)
	}
	if math.Abs(ppg-4.0/3.0) > 1e-9 {
		t.Errorf("ppg = %v, want %v", ppg, 4.0/3.0)
	}

	ppg, played, err = s.RecentForm("unknown-team", 5)
	if err != nil {
		t.Fatalf("RecentForm for unknown team: %v", err)
	}
	if played != 0 || ppg != 0 {
		t.Errorf("unknown team should have no form, got ppg=%v played=%d", ppg, played)
	}
}

func TestHeadToHead(t *testing.T) {
	s := newTestStorage(t)
	base := day(2025, 1, 1)
	meetings := []models.Match{
		finishedMatch("h1", base, "team-a", "team-b", 2, 0),               // A wins
		finishedMatch("h2", base.AddDate(0, 1, 0), "team-b", "team-a", 1, 1), // draw
		finishedMatch("h3", base.AddDate(0, 2, 0), "team-b", "team-a", 2, 0), // B wins
		finishedMatch("h4", base.AddDate(0, 3, 0), "team-a", "team-c", 5, 0), // not a meeting
	}
	for _, m := range meetings {
		if err := s.UpsertMatch(m); err != nil {
			t.Fatalf("upserting %s: %v", m.FixtureID, err)
		}
	}

	dist, total, err := s.HeadToHead("team-a", "team-b", 10)
	if err != nil {
		t.Fatalf("HeadToHead: %v", err)
	}
	if total != 3 {
		t.Fatalf("total meetings = %d, want 3", total)
	}
	third := 1.0 / 3.0
	for i, v := range dist {
		if math.Abs(v-third) > 1e-9 {
			t.Errorf("dist[%d] = %v, want %v", i, v, third)
		}
	}

	// Perspective flips with argument order.
	flipped, _, err := s.HeadToHead("team-b", "team-a", 10)
	if err != nil {
		t.Fatalf("HeadToHead flipped: %v", err)
	}
	if flipped[0] != dist[2] || flipped[2] != dist[0] {
		t.Errorf("flipped distribution %v does not mirror %v", flipped, dist)
	}

	_, total, err = s.HeadToHead("team-a", "team-z", 10)
	if err != nil {
		t.Fatalf("HeadToHead no meetings: %v", err)
	}
	if total != 0 {
		t.Errorf("expected no meetings, got %d", total)
	}
}

func TestSaveClonePairsRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	detected := time.Date(2025, 8, 14, 11, 0, 0, 0, time.UTC)
	pair := models.ClonePair{
		FixtureA:   "fx-1",
		FixtureB:   "fx-2",
		LabelA:     "Alpha vs Beta",
		LabelB:     "Gamma vs Delta",
		Similarity: 0.87,
		Breakdown: models.SimilarityBreakdown{
			RatingGap: 0.95, OddsShape: 0.90, RecentForm: 0.85, League: 1.0, HeadToHead: 0.5,
		},
		Recommendation: "Alpha vs Beta mirrors Gamma vs Delta",
		DetectedAt:     detected,
	}
	if err := s.SaveClonePairs([]models.ClonePair{pair}); err != nil {
		t.Fatalf("saving clone pair: %v", err)
	}
	// Same day, updated score: still one row.
	pair.Similarity = 0.88
	if err := s.SaveClonePairs([]models.ClonePair{pair}); err != nil {
		t.Fatalf("re-saving clone pair: %v", err)
	}

	pairs, err := s.ClonePairsOn(day(2025, 8, 14))
	if err != nil {
		t.Fatalf("ClonePairsOn: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	got := pairs[0]
	if got.Similarity != 0.88 {
		t.Errorf("similarity = %v, want updated 0.88", got.Similarity)
	}
	if got.Breakdown.RatingGap != 0.95 || got.Breakdown.HeadToHead != 0.5 {
		t.Errorf("breakdown did not round-trip: %+v", got.Breakdown)
	}
	if !got.DetectedAt.Equal(detected) {
		t.Errorf("DetectedAt = %v, want %v", got.DetectedAt, detected)
	}
}
