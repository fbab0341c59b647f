package trainer

import (
	"math/rand"
	"time"

	"github.com/sartorproj/fluxcast/bayesopt"
	"github.com/sartorproj/fluxcast/sarima"
)

// Strategy picks the optimizer of the full fit and the acquisition function
// of the order search. The default is pinned; Randomize draws both from Seed.
type Strategy struct {
	Method      sarima.Method
	Acquisition bayesopt.Acquisition
	Seed        int64
	Randomize   bool
}

// DefaultStrategy returns the pinned strategy: BFGS, expected improvement,
// seed 42.
func DefaultStrategy() Strategy {
	return Strategy{
		Method:      sarima.BFGS,
		Acquisition: bayesopt.ExpectedImprovement,
		Seed:        42,
	}
}

var randomMethods = []sarima.Method{sarima.BFGS, sarima.NelderMead, sarima.CG}

func (s Strategy) resolve() (sarima.Method, bayesopt.Acquisition) {
	method, acq := s.Method, s.Acquisition
	if s.Randomize {
		rng := rand.New(rand.NewSource(s.Seed))
		acq = bayesopt.Acquisitions[rng.Intn(len(bayesopt.Acquisitions))]
		method = randomMethods[rng.Intn(len(randomMethods))]
	}
	if method == "" {
		method = sarima.BFGS
	}
	if acq == "" {
		acq = bayesopt.ExpectedImprovement
	}
	return method, acq
}

// QualityPolicy labels a final model from its AIC.
type QualityPolicy func(aic float64) string

// DefaultQuality labels AIC below 600 good, below 700 fair, poor otherwise.
func DefaultQuality(aic float64) string {
	switch {
	case aic < 600:
		return "good"
	case aic < 700:
		return "fair"
	default:
		return "poor"
	}
}

// Config holds the search configuration.
type Config struct {
	Budget           time.Duration // Wall-clock budget of the order search (default: 10m)
	EstimatedFitTime time.Duration // Expected duration of one screening fit (default: 60s)
	MaxCalls         int           // Upper bound on objective evaluations (default: 30)
	MaxInitialPoints int           // Upper bound on Latin-hypercube points (default: 8)
	Finalists        int           // Trials kept for Pareto selection (default: 5)

	MaxP  int // Maximum AR order (default: 4)
	MaxQ  int // Maximum MA order (default: 3)
	MaxSP int // Maximum seasonal AR order (default: 3)
	MaxSQ int // Maximum seasonal MA order (default: 2)
	D     int // Differencing order (default: 1)
	SD    int // Seasonal differencing order (default: 0)
	M     int // Seasonal period (default: 53)

	MaxOrderSum int     // Orders with p+d+q+P+D+Q above this are not fitted (default: 9)
	Penalty     float64 // Objective value of rejected or failed orders (default: 1e6)

	Strategy Strategy
	Quality  QualityPolicy
}

// DefaultConfig returns the default training configuration.
func DefaultConfig() *Config {
	return &Config{
		Budget:           10 * time.Minute,
		EstimatedFitTime: 60 * time.Second,
		MaxCalls:         30,
		MaxInitialPoints: 8,
		Finalists:        5,
		MaxP:             4,
		MaxQ:             3,
		MaxSP:            3,
		MaxSQ:            2,
		D:                1,
		SD:               0,
		M:                53,
		MaxOrderSum:      9,
		Penalty:          1e6,
		Strategy:         DefaultStrategy(),
		Quality:          DefaultQuality,
	}
}

// Calls returns the number of objective evaluations the budget allows:
// min(MaxCalls, Budget/EstimatedFitTime), at least one.
func (c *Config) Calls() int {
	if c.EstimatedFitTime <= 0 {
		return c.MaxCalls
	}
	approx := int(c.Budget / c.EstimatedFitTime)
	if approx <= 0 {
		return 1
	}
	return min(c.MaxCalls, approx)
}

// InitialPoints returns the size of the Latin-hypercube design for calls
// evaluations: min(MaxInitialPoints, calls/2), at least one.
func (c *Config) InitialPoints(calls int) int {
	if calls < 2 {
		return 1
	}
	return max(1, min(c.MaxInitialPoints, calls/2))
}

// Space returns the order search space (p, q, P, Q).
func (c *Config) Space() bayesopt.Space {
	return bayesopt.Space{
		{Name: "p", Low: 0, High: c.MaxP},
		{Name: "q", Low: 0, High: c.MaxQ},
		{Name: "P", Low: 0, High: c.MaxSP},
		{Name: "Q", Low: 0, High: c.MaxSQ},
	}
}

// order builds the full order of a search point.
func (c *Config) order(x []int) sarima.Order {
	return sarima.Order{P: x[0], D: c.D, Q: x[1], SP: x[2], SD: c.SD, SQ: x[3], M: c.M}
}
