package bayesopt

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Acquisition selects how the next point is chosen from the posterior.
type Acquisition string

const (
	ExpectedImprovement    Acquisition = "EI"
	LowerConfidenceBound   Acquisition = "LCB"
	ProbabilityImprovement Acquisition = "PI"
)

// Acquisitions lists every supported acquisition function.
var Acquisitions = []Acquisition{ExpectedImprovement, LowerConfidenceBound, ProbabilityImprovement}

// ParseAcquisition resolves an acquisition name, case-insensitively.
func ParseAcquisition(s string) (Acquisition, error) {
	a := Acquisition(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Acquisitions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("bayesopt: unknown acquisition %q", s)
}

// score returns a value to maximize for a candidate with posterior mean mu
// and deviation sigma, given the best objective value seen so far.
func (a Acquisition) score(mu, sigma, best, xi, kappa float64) float64 {
	switch a {
	case LowerConfidenceBound:
		return -(mu - kappa*sigma)
	case ProbabilityImprovement:
		z := (best - mu - xi) / sigma
		return distuv.UnitNormal.CDF(z)
	default:
		improvement := best - mu - xi
		z := improvement / sigma
		return improvement*distuv.UnitNormal.CDF(z) + sigma*distuv.UnitNormal.Prob(z)
	}
}
