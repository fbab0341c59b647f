package forecast

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultConfidence is the coverage of the empirical interval.
	DefaultConfidence = 0.70
	// DefaultWindow is the number of recent residuals the interval uses.
	DefaultWindow = 104
	// MinResiduals is the least number of residuals accepted whatever the window.
	MinResiduals = 10
)

// EmpiricalBounds returns the additive offsets of a confidence interval built
// from the residuals actual - predicted over their aligned prefix. Pairs with
// a missing side are skipped. The offsets are the (1-confidence)/2 and
// (1+confidence)/2 percentiles of the last window residuals.
func EmpiricalBounds(actual, predicted []float64, confidence float64, window int) (lower, upper float64, err error) {
	if confidence <= 0 || confidence >= 1 {
		return 0, 0, fmt.Errorf("forecast: confidence %v outside (0, 1)", confidence)
	}
	n := min(len(actual), len(predicted))
	residuals := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		r := actual[i] - predicted[i]
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		residuals = append(residuals, r)
	}

	need := max(MinResiduals, window)
	if len(residuals) < need {
		return 0, 0, fmt.Errorf("%w: %d residuals, need %d", ErrInsufficientHistory, len(residuals), need)
	}
	if window > 0 {
		residuals = residuals[len(residuals)-window:]
	}
	sort.Float64s(residuals)

	alpha := (1 - confidence) / 2
	return percentile(residuals, alpha), percentile(residuals, 1-alpha), nil
}

// percentile interpolates linearly between the closest ranks of sorted, the
// first value being rank 0 and the last rank n-1.
func percentile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(sorted)-1)
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
