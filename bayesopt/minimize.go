package bayesopt

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
)

// Config controls a minimization run.
type Config struct {
	Calls         int         // Total objective evaluations
	InitialPoints int         // Latin-hypercube points evaluated before the model is used
	Acquisition   Acquisition // Default: ExpectedImprovement
	Seed          int64
	Xi            float64 // Improvement margin for EI and PI (default: 0.01)
	Kappa         float64 // Exploration weight for LCB (default: 1.96)
	Candidates    int     // Random candidates scored per step when the space is too large to enumerate (default: 2000)
}

func (c Config) withDefaults() Config {
	if c.Calls < 1 {
		c.Calls = 1
	}
	if c.InitialPoints < 1 {
		c.InitialPoints = 1
	}
	if c.InitialPoints > c.Calls {
		c.InitialPoints = c.Calls
	}
	if c.Acquisition == "" {
		c.Acquisition = ExpectedImprovement
	}
	if c.Xi == 0 {
		c.Xi = 0.01
	}
	if c.Kappa == 0 {
		c.Kappa = 1.96
	}
	if c.Candidates < 1 {
		c.Candidates = 2000
	}
	return c
}

// Objective evaluates one point. It must return a finite value; callers map
// failures to a large penalty.
type Objective func(ctx context.Context, x []int) float64

// Trial is one evaluated point.
type Trial struct {
	X []int
	Y float64
}

// Result holds every trial and the best one.
type Result struct {
	X      []int
	Fun    float64
	Trials []Trial
}

// Sorted returns the trials ordered by objective value, ascending.
func (r *Result) Sorted() []Trial {
	out := append([]Trial(nil), r.Trials...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Y < out[j].Y })
	return out
}

// Minimize searches space for the minimum of f. The context is checked
// between evaluations: when it is done, the trials so far are returned with
// no error, or ctx.Err() when nothing was evaluated.
func Minimize(ctx context.Context, space Space, f Objective, cfg Config) (*Result, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))

	res := &Result{Fun: math.Inf(1)}
	seen := make(map[string]bool)

	evaluate := func(x []int) {
		y := f(ctx, x)
		res.Trials = append(res.Trials, Trial{X: x, Y: y})
		seen[key(x)] = true
		if y < res.Fun {
			res.X, res.Fun = x, y
		}
	}

	for _, x := range space.LatinHypercube(rng, cfg.InitialPoints) {
		if ctx.Err() != nil {
			return finish(ctx, res)
		}
		evaluate(x)
	}

	for len(res.Trials) < cfg.Calls {
		if ctx.Err() != nil {
			break
		}
		evaluate(next(space, res.Trials, seen, rng, cfg))
	}

	return finish(ctx, res)
}

func finish(ctx context.Context, res *Result) (*Result, error) {
	if len(res.Trials) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("bayesopt: no evaluations")
	}
	return res, nil
}

// next picks the unevaluated candidate with the best acquisition score.
// It falls back to a random point when the process cannot be fitted.
func next(space Space, trials []Trial, seen map[string]bool, rng *rand.Rand, cfg Config) []int {
	var candidates [][]int
	if space.Size() <= cfg.Candidates {
		candidates = space.enumerate()
	} else {
		candidates = space.sample(rng, cfg.Candidates)
	}

	fresh := candidates[:0]
	for _, c := range candidates {
		if !seen[key(c)] {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return space.sample(rng, 1)[0]
	}

	x := make([][]float64, len(trials))
	y := make([]float64, len(trials))
	best := math.Inf(1)
	for i, t := range trials {
		x[i] = space.normalize(t.X)
		y[i] = t.Y
		best = math.Min(best, t.Y)
	}

	gp, err := fitGP(x, y)
	if err != nil {
		return fresh[rng.Intn(len(fresh))]
	}

	// Acquisition terms are computed on the standardized scale.
	bestZ := (best - gp.mean) / gp.std
	var choice []int
	bestScore := math.Inf(-1)
	for _, c := range fresh {
		mu, sigma := gp.predict(space.normalize(c))
		score := cfg.Acquisition.score((mu-gp.mean)/gp.std, sigma/gp.std, bestZ, cfg.Xi, cfg.Kappa)
		if score > bestScore {
			choice, bestScore = c, score
		}
	}
	if choice == nil {
		return fresh[rng.Intn(len(fresh))]
	}
	return choice
}
