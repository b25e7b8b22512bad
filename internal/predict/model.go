// Package predict turns current team ratings and bookmaker odds into outcome
// probabilities, expected-value scores, and per-fixture prediction records.
//
// The 1X2 decomposition starts from the two-outcome logistic expectation
// E = 1/(1+10^(−diff/400)) of the rating engine. The draw probability is a
// fixed-shape curve peaked at diff 0 and decaying linearly with |diff|,
// clamped between a floor and a ceiling; the remaining mass is split between
// home and away proportionally to the two-outcome expectation. Over/Under 2.5
// and BTTS use a fixed baseline goal-rate assumption with a small mismatch
// adjustment; they are fixed-formula estimates, not fitted to goal data.
//
// All functions here are pure functions of their numeric inputs.
package predict

import "math"

// ModelParams are the tunable constants of the probability model. All rating
// differences fed to the model are expected to already include the home
// advantage bonus.
type ModelParams struct {
	DrawCeiling   float64 // draw probability at diff 0
	DrawFloor     float64 // draw probability lower bound at extreme diffs
	DrawSlope     float64 // draw probability lost per rating point of |diff|
	BaselineGoals float64 // expected total goals for an even match
	GoalsPerPoint float64 // extra expected goals per rating point of |diff|
}

// OutcomeProbs is a 1X2 probability triple. Home+Draw+Away always sums to 1.0
// within floating tolerance.
type OutcomeProbs struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// Vector returns the probabilities in H, D, A order.
func (o OutcomeProbs) Vector() [3]float64 {
	return [3]float64{o.Home, o.Draw, o.Away}
}

// homeExpectation is the two-outcome (home-or-not) logistic expectation for a
// rating difference that includes home advantage.
func homeExpectation(diff float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, -diff/400.0))
}

// drawProbability is the fixed-shape draw curve: ceiling − slope·|diff|,
// clamped to [floor, ceiling]. Symmetric in |diff| and peaked at zero.
func drawProbability(diff float64, p ModelParams) float64 {
	d := p.DrawCeiling - p.DrawSlope*math.Abs(diff)
	if d < p.DrawFloor {
		return p.DrawFloor
	}
	if d > p.DrawCeiling {
		return p.DrawCeiling
	}
	return d
}

// Outcome1X2 decomposes a rating difference (home advantage included) into
// home/draw/away probabilities.
func Outcome1X2(diff float64, p ModelParams) OutcomeProbs {
	eHome := homeExpectation(diff)
	draw := drawProbability(diff, p)
	remaining := 1.0 - draw
	return OutcomeProbs{
		Home: eHome * remaining,
		Draw: draw,
		Away: (1.0 - eHome) * remaining,
	}
}

// expectedTotalGoals grows slightly with the rating mismatch: lopsided games
// tend to produce more goals than even ones.
func expectedTotalGoals(diff float64, p ModelParams) float64 {
	return p.BaselineGoals + p.GoalsPerPoint*math.Abs(diff)
}

// poissonCDF2 is P(X <= 2) for a Poisson variable with mean lambda.
func poissonCDF2(lambda float64) float64 {
	return math.Exp(-lambda) * (1.0 + lambda + lambda*lambda/2.0)
}

// OverUnder25 estimates the Over/Under 2.5 goals probabilities from the
// rating difference and the baseline goal-rate assumption.
func OverUnder25(diff float64, p ModelParams) (over, under float64) {
	lambda := expectedTotalGoals(diff, p)
	under = poissonCDF2(lambda)
	return 1.0 - under, under
}

// BothTeamsToScore estimates the BTTS Yes/No probabilities. The expected
// total goals are split between the sides proportionally to the logistic
// expectation, clamped so even a heavy underdog keeps a scoring chance.
func BothTeamsToScore(diff float64, p ModelParams) (yes, no float64) {
	lambda := expectedTotalGoals(diff, p)
	share := homeExpectation(diff)
	if share < 0.25 {
		share = 0.25
	}
	if share > 0.75 {
		share = 0.75
	}
	lambdaHome := lambda * share
	lambdaAway := lambda * (1.0 - share)
	yes = (1.0 - math.Exp(-lambdaHome)) * (1.0 - math.Exp(-lambdaAway))
	return yes, 1.0 - yes
}
