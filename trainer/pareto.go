package trainer

import (
	"math"
	"sort"

	"github.com/sartorproj/fluxcast/sarima"
)

// Selection weights.
const (
	weightAIC        = 1.0
	weightComplexity = 50.0
	weightCorr       = 10.0
	weightDistance   = 1.0
	slopeAIC         = 50.0 // slope of the reference line AIC = k * complexity
)

// Candidate is a successfully screened order.
type Candidate struct {
	Order       sarima.Order
	AIC         float64
	Correlation float64   // In-sample correlation of fitted and observed values
	Params      []float64 // Screening estimates, used as warm start
}

// Complexity returns p + q + 2(P + Q).
func Complexity(o sarima.Order) int {
	return o.P + o.Q + 2*(o.SP+o.SQ)
}

func (c Candidate) objectives() [3]float64 {
	return [3]float64{c.AIC, float64(Complexity(c.Order)), 1 - c.Correlation}
}

// dominates reports whether a is no worse than b on every objective and
// strictly better on one.
func dominates(a, b [3]float64) bool {
	strict := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			strict = true
		}
	}
	return strict
}

// ParetoFront returns the indices of the candidates no other candidate
// dominates on (AIC, complexity, 1 - correlation).
func ParetoFront(cands []Candidate) []int {
	var front []int
	for i := range cands {
		oi := cands[i].objectives()
		dominated := false
		for j := range cands {
			if i != j && dominates(cands[j].objectives(), oi) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, i)
		}
	}
	return front
}

// Score is the weighted selection score of a candidate; lower is better.
func Score(c Candidate) float64 {
	comp := float64(Complexity(c.Order))
	return weightAIC*c.AIC +
		weightComplexity*comp +
		weightCorr*c.Correlation +
		weightDistance*math.Abs(c.AIC-slopeAIC*comp)
}

// Select returns the Pareto-front candidate with the lowest Score, or the
// lowest AIC when the front is empty. ok is false when cands is empty.
func Select(cands []Candidate) (best Candidate, ok bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	front := ParetoFront(cands)
	if len(front) == 0 {
		best = cands[0]
		for _, c := range cands[1:] {
			if c.AIC < best.AIC {
				best = c
			}
		}
		return best, true
	}
	bestScore := math.Inf(1)
	for _, i := range front {
		if s := Score(cands[i]); s < bestScore {
			best, bestScore = cands[i], s
		}
	}
	return best, true
}

// Finalists returns the k candidates with the lowest AIC, in AIC order.
func Finalists(cands []Candidate, k int) []Candidate {
	out := append([]Candidate(nil), cands...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].AIC < out[j].AIC })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
