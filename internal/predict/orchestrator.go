package predict

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mrenaud/footoracle/internal/logger"
	"github.com/mrenaud/footoracle/internal/models"
)

// RatingSource supplies current team ratings. Unseen teams yield the default
// rating; the source never errors, by design.
type RatingSource interface {
	Current(teamID string) float64
}

// OddsSource supplies all stored quotes for a fixture.
type OddsSource interface {
	QuotesForFixture(fixtureID string) ([]models.OddsQuote, error)
}

// FixtureError is a per-fixture, per-market error collected during a
// generation run. The batch continues past these.
type FixtureError struct {
	FixtureID string
	Market    string
	Err       error
}

func (e FixtureError) Error() string {
	return fmt.Sprintf("fixture %s market %s: %v", e.FixtureID, e.Market, e.Err)
}

// Orchestrator produces one prediction record per (fixture, market,
// selection) for a day's fixtures.
type Orchestrator struct {
	ratings         RatingSource
	odds            OddsSource
	eval            *Evaluator
	params          ModelParams
	homeAdvantage   float64
	markets         []string
	emitWithoutOdds bool
}

// NewOrchestrator wires the probability model, rating source, odds source and
// evaluator together. markets lists the enabled markets in emission order;
// emitWithoutOdds keeps probability-only records for selections with no price.
func NewOrchestrator(
	ratings RatingSource,
	odds OddsSource,
	eval *Evaluator,
	params ModelParams,
	homeAdvantage float64,
	markets []string,
	emitWithoutOdds bool,
) *Orchestrator {
	return &Orchestrator{
		ratings:         ratings,
		odds:            odds,
		eval:            eval,
		params:          params,
		homeAdvantage:   homeAdvantage,
		markets:         markets,
		emitWithoutOdds: emitWithoutOdds,
	}
}

// marketProbs returns the model probabilities for every selection of a market,
// keyed by selection, for a rating difference that includes home advantage.
func marketProbs(market string, diff float64, p ModelParams) (map[string]float64, error) {
	switch market {
	case models.Market1X2:
		probs := Outcome1X2(diff, p)
		return map[string]float64{
			models.SelectionHome: probs.Home,
			models.SelectionDraw: probs.Draw,
			models.SelectionAway: probs.Away,
		}, nil
	case models.MarketOU25:
		over, under := OverUnder25(diff, p)
		return map[string]float64{
			models.SelectionOver:  over,
			models.SelectionUnder: under,
		}, nil
	case models.MarketBTTS:
		yes, no := BothTeamsToScore(diff, p)
		return map[string]float64{
			models.SelectionYes: yes,
			models.SelectionNo:  no,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported market %q", market)
	}
}

// Generate computes predictions for the given fixtures. A failed fixture or
// market never blocks the rest of the batch: errors are collected and
// returned alongside the records produced. Re-running with identical inputs
// produces an identical output set (record IDs aside); deduplication on the
// (fixture, method, market, selection, date) key is the storage layer's job.
func (o *Orchestrator) Generate(fixtures []models.Match, generatedAt time.Time) ([]models.Prediction, []FixtureError) {
	var predictions []models.Prediction
	var errs []FixtureError

	for _, fx := range fixtures {
		if fx.HomeTeamID == "" || fx.AwayTeamID == "" {
			errs = append(errs, FixtureError{
				FixtureID: fx.FixtureID,
				Err:       fmt.Errorf("fixture is missing team IDs"),
			})
			continue
		}

		homeRating := o.ratings.Current(fx.HomeTeamID)
		awayRating := o.ratings.Current(fx.AwayTeamID)
		diff := (homeRating + o.homeAdvantage) - awayRating

		quotes, err := o.odds.QuotesForFixture(fx.FixtureID)
		if err != nil {
			// Odds lookup failure degrades to "no quotes": probability-only
			// records are still worth emitting.
			errs = append(errs, FixtureError{FixtureID: fx.FixtureID, Err: err})
			quotes = nil
		}

		for _, market := range o.markets {
			probs, err := marketProbs(market, diff, o.params)
			if err != nil {
				errs = append(errs, FixtureError{FixtureID: fx.FixtureID, Market: market, Err: err})
				continue
			}

			missingQuote := false
			for _, selection := range models.MarketSelections[market] {
				prob := probs[selection]
				pred := models.Prediction{
					ID:          uuid.New().String(),
					FixtureID:   fx.FixtureID,
					Date:        fx.Date,
					League:      fx.League,
					HomeTeam:    fx.HomeTeam,
					AwayTeam:    fx.AwayTeam,
					Method:      models.MethodElo,
					Market:      market,
					Selection:   selection,
					Prob:        prob,
					GeneratedAt: generatedAt,
				}

				best, value, evalErr := o.eval.Evaluate(prob, quotes, market, selection)
				switch {
				case evalErr == nil:
					odd := best.Price
					pred.Odd = &odd
					pred.Value = &value
				case o.emitWithoutOdds:
					missingQuote = true
				default:
					missingQuote = true
					continue
				}

				predictions = append(predictions, pred)
			}

			if missingQuote {
				errs = append(errs, FixtureError{
					FixtureID: fx.FixtureID,
					Market:    market,
					Err:       ErrNoQuoteAvailable,
				})
			}
		}
	}

	if len(errs) > 0 {
		logger.Debug("prediction generation: %d records, %d skipped items", len(predictions), len(errs))
	}
	return predictions, errs
}
