package predict

import (
	"errors"
	"fmt"

	"github.com/mrenaud/footoracle/internal/models"
)

// ErrNoQuoteAvailable marks a (fixture, market, selection) with no bookmaker
// price. Non-fatal: callers treat it as "no prediction for that market".
var ErrNoQuoteAvailable = errors.New("no quote available")

// Value is the expected-value metric: probability × decimal odds − 1.0.
// Positive value means the price is more generous than the model's implied
// fair price.
func Value(prob, odds float64) float64 {
	return prob*odds - 1.0
}

// Evaluator selects the best available price for a selection and computes its
// expected value. Price ties are broken by a fixed bookmaker priority order
// (Pinnacle is treated as the sharper reference price downstream).
type Evaluator struct {
	priorityRank map[string]int
}

// NewEvaluator creates an evaluator with the given ordered bookmaker
// preference list, most preferred first.
func NewEvaluator(priority []string) *Evaluator {
	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		rank[name] = i
	}
	return &Evaluator{priorityRank: rank}
}

// rank returns the bookmaker's priority position; unlisted bookmakers sort
// after all listed ones, alphabetically via the caller's tie-break.
func (e *Evaluator) rank(bookmaker string) int {
	if r, ok := e.priorityRank[bookmaker]; ok {
		return r
	}
	return len(e.priorityRank)
}

// BestQuote picks the highest price among the quotes matching (market,
// selection). Exact price ties go to the higher-priority bookmaker, then to
// the lexicographically smaller name for determinism.
func (e *Evaluator) BestQuote(quotes []models.OddsQuote, market, selection string) (models.OddsQuote, error) {
	var best models.OddsQuote
	found := false
	for _, q := range quotes {
		if q.Market != market || q.Selection != selection {
			continue
		}
		if !found || betterQuote(q, best, e) {
			best = q
			found = true
		}
	}
	if !found {
		return models.OddsQuote{}, fmt.Errorf("%w: market %s selection %s", ErrNoQuoteAvailable, market, selection)
	}
	return best, nil
}

func betterQuote(candidate, current models.OddsQuote, e *Evaluator) bool {
	if candidate.Price != current.Price {
		return candidate.Price > current.Price
	}
	cr, br := e.rank(candidate.Bookmaker), e.rank(current.Bookmaker)
	if cr != br {
		return cr < br
	}
	return candidate.Bookmaker < current.Bookmaker
}

// Evaluate combines a model probability with the best available price for the
// selection. Returns the chosen quote and the expected value.
func (e *Evaluator) Evaluate(prob float64, quotes []models.OddsQuote, market, selection string) (models.OddsQuote, float64, error) {
	best, err := e.BestQuote(quotes, market, selection)
	if err != nil {
		return models.OddsQuote{}, 0, err
	}
	return best, Value(prob, best.Price), nil
}
