package trainer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/fluxcast/bayesopt"
	"github.com/sartorproj/fluxcast/bundle"
	"github.com/sartorproj/fluxcast/sarima"
)

func trainingData(n int) ([]float64, [][]float64) {
	rng := rand.New(rand.NewSource(3))
	y := make([]float64, n)
	x := make([][]float64, n)
	level := 500.0
	for i := range y {
		season := math.Sin(2 * math.Pi * float64(i) / 4)
		x[i] = []float64{15 + 5*season, rng.NormFloat64(), float64(i % 2)}
		level += rng.NormFloat64() * 3
		y[i] = level + 20*season + 10*x[i][2]
	}
	return y, x
}

func smallConfig() *Config {
	cfg := DefaultConfig()
	cfg.MaxP, cfg.MaxQ, cfg.MaxSP, cfg.MaxSQ = 1, 1, 1, 0
	cfg.M = 4
	cfg.Budget = time.Hour
	cfg.EstimatedFitTime = 10 * time.Minute // 6 calls
	return cfg
}

func TestConfigCalls(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.Calls())
	assert.Equal(t, 5, cfg.InitialPoints(cfg.Calls()))

	cfg.Budget = time.Hour
	assert.Equal(t, 30, cfg.Calls())
	assert.Equal(t, 8, cfg.InitialPoints(cfg.Calls()))

	cfg.Budget = 30 * time.Second
	assert.Equal(t, 1, cfg.Calls())
	assert.Equal(t, 1, cfg.InitialPoints(1))
	assert.Equal(t, 1, cfg.InitialPoints(3))
}

func TestStrategy(t *testing.T) {
	method, acq := DefaultStrategy().resolve()
	assert.Equal(t, sarima.BFGS, method)
	assert.Equal(t, bayesopt.ExpectedImprovement, acq)

	s := Strategy{Seed: 11, Randomize: true}
	m1, a1 := s.resolve()
	m2, a2 := s.resolve()
	assert.Equal(t, m1, m2)
	assert.Equal(t, a1, a2)
	assert.Contains(t, randomMethods, m1)
	assert.Contains(t, bayesopt.Acquisitions, a1)
}

func TestDefaultQuality(t *testing.T) {
	assert.Equal(t, "good", DefaultQuality(-120))
	assert.Equal(t, "good", DefaultQuality(599.9))
	assert.Equal(t, "fair", DefaultQuality(600))
	assert.Equal(t, "poor", DefaultQuality(700))
}

func TestParetoSelection(t *testing.T) {
	cands := []Candidate{
		{Order: sarima.Order{P: 1, D: 1, Q: 1, M: 53}, AIC: 100, Correlation: 0.9},
		{Order: sarima.Order{P: 2, D: 1, Q: 1, SP: 1, M: 53}, AIC: 95, Correlation: 0.92},
		{Order: sarima.Order{P: 3, D: 1, Q: 3, SP: 1, SQ: 1, M: 53}, AIC: 110, Correlation: 0.8},
	}
	assert.Equal(t, []int{0, 1}, ParetoFront(cands))
	assert.InDelta(t, 209.0, Score(cands[0]), 1e-9)
	assert.InDelta(t, 509.2, Score(cands[1]), 1e-9)

	best, ok := Select(cands)
	require.True(t, ok)
	assert.Equal(t, cands[0].Order, best.Order)

	_, ok = Select(nil)
	assert.False(t, ok)
}

func TestFinalists(t *testing.T) {
	var cands []Candidate
	for i, aic := range []float64{50, 10, 40, 20, 30, 60, 5} {
		cands = append(cands, Candidate{Order: sarima.Order{P: i}, AIC: aic})
	}
	top := Finalists(cands, 5)
	require.Len(t, top, 5)
	assert.Equal(t, []float64{5, 10, 20, 30, 40}, []float64{top[0].AIC, top[1].AIC, top[2].AIC, top[3].AIC, top[4].AIC})
}

func TestComplexity(t *testing.T) {
	assert.Equal(t, 9, Complexity(sarima.Order{P: 2, Q: 1, SP: 1, SQ: 2}))
}

func TestTrainSavesBundle(t *testing.T) {
	store := bundle.NewFileStore(t.TempDir())
	tr := New(store, smallConfig())
	y, x := trainingData(120)

	run := tr.NewRun("centre")
	assert.Equal(t, StateIdle, run.State())

	res, err := run.Execute(context.Background(), y, x)
	require.NoError(t, err)
	assert.Equal(t, StateSaved, run.State())

	assert.Equal(t, 1, res.Order.D)
	assert.Equal(t, 4, res.Order.M)
	assert.LessOrEqual(t, res.Order.P, 1)
	assert.LessOrEqual(t, res.Order.SP, 1)
	assert.Zero(t, res.Order.SQ)
	assert.Positive(t, res.Trials)
	assert.LessOrEqual(t, res.Trials, 6)
	assert.LessOrEqual(t, len(res.Finalists), 5)
	assert.NotEmpty(t, res.Quality)
	assert.False(t, math.IsNaN(res.AIC))
	assert.True(t, res.DurbinWatson > 0 && res.DurbinWatson < 4, "durbin-watson %f", res.DurbinWatson)
	assert.GreaterOrEqual(t, res.NDiffsADF, 0)
	for _, lag := range res.ResidualLags {
		assert.True(t, lag >= 1 && lag <= 12, "lag %d", lag)
	}

	loaded, err := store.Load(context.Background(), "centre")
	require.NoError(t, err)
	assert.Equal(t, res.RunID, loaded.RunID)
	assert.Equal(t, res.Order, loaded.Model.Order)
	assert.Equal(t, 120, loaded.Model.NObs())
	assert.Equal(t, []string{"pc1", "pc2", "pc3"}, loaded.Model.ExogNames)

	_, err = run.Execute(context.Background(), y, x)
	assert.ErrorIs(t, err, ErrRunUsed)
}

func TestOrderSumPenalty(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxQ, cfg.MaxSP = 0, 0
	cfg.MaxOrderSum = 1 // only (0,1,0)(0,0,0) can be fitted
	tr := New(nil, cfg)
	y, x := trainingData(100)

	res, err := tr.Train(context.Background(), "centre", y, x)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Trials)
	assert.Equal(t, sarima.Order{D: 1, M: 4}, res.Order)
}

func TestTrainInvalidInput(t *testing.T) {
	store := bundle.NewFileStore(t.TempDir())
	tr := New(store, smallConfig())
	y, x := trainingData(60)
	x[10][1] = math.NaN()

	run := tr.NewRun("centre")
	_, err := run.Execute(context.Background(), y, x)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, StateFailed, run.State())

	_, err = store.Load(context.Background(), "centre")
	assert.ErrorIs(t, err, bundle.ErrNotFound)
}

func TestTrainCancelled(t *testing.T) {
	store := bundle.NewFileStore(t.TempDir())
	tr := New(store, smallConfig())
	y, x := trainingData(100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := tr.NewRun("centre")
	_, err := run.Execute(ctx, y, x)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateFailed, run.State())

	_, err = store.Load(context.Background(), "centre")
	assert.ErrorIs(t, err, bundle.ErrNotFound)
}

func TestTrainInsufficientData(t *testing.T) {
	tr := New(nil, smallConfig())
	y, x := trainingData(8)

	_, err := tr.Train(context.Background(), "centre", y, x)
	assert.ErrorIs(t, err, ErrNoCandidate)
}
