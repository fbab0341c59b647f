package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sartorproj/fluxcast/bayesopt"
	"github.com/sartorproj/fluxcast/bundle"
	"github.com/sartorproj/fluxcast/metrics"
	"github.com/sartorproj/fluxcast/preprocess"
	"github.com/sartorproj/fluxcast/sarima"
	"github.com/sartorproj/fluxcast/stats"
	"github.com/sartorproj/fluxcast/timeseries"
)

var (
	// ErrNoCandidate is returned when no screened order could be fitted.
	ErrNoCandidate = errors.New("trainer: no order could be fitted")
	// ErrInvalidInput is returned for misaligned or incomplete training data.
	ErrInvalidInput = errors.New("trainer: invalid input")
	// ErrRunUsed is returned when a run is executed twice.
	ErrRunUsed = errors.New("trainer: run already executed")
)

// State is the life-cycle state of a training run.
type State string

const (
	StateIdle      State = "IDLE"
	StateScreening State = "SCREENING"
	StateFullFit   State = "FULL_FIT"
	StateSaved     State = "SAVED"
	StateFailed    State = "FAILED"
)

// Result describes a saved model.
type Result struct {
	Outlet      string
	RunID       string
	Order       sarima.Order
	AIC         float64
	Correlation float64
	Trials      int    // Orders actually fitted during screening
	Quality     string // Label from the quality policy
	Method      sarima.Method
	Acquisition bayesopt.Acquisition
	Converged   bool
	Finalists   []Candidate
	LjungBox    *stats.LjungBoxResult // Nil when there are too few residuals
	NDiffs      int                   // Differences suggested by KPSS on the target
	NDiffsADF   int                   // Same, by ADF

	// DurbinWatson and ResidualLags describe the full-fit residuals; lags are
	// those whose autocorrelation exceeds the 95% white-noise bound.
	DurbinWatson float64
	ResidualLags []int

	Duration time.Duration
	Bundle   *bundle.Bundle
}

// Trainer searches, fits and saves models.
type Trainer struct {
	Config  *Config
	Store   bundle.Store
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
}

// New creates a trainer saving into store. A nil config uses DefaultConfig.
func New(store bundle.Store, config *Config) *Trainer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Trainer{
		Config: config,
		Store:  store,
		Logger: zerolog.Nop(),
		Tracer: otel.Tracer("github.com/sartorproj/fluxcast/trainer"),
	}
}

// Run is one training of one outlet.
type Run struct {
	Outlet string

	trainer *Trainer
	logger  zerolog.Logger
	mu      sync.Mutex
	state   State
}

// NewRun creates an idle run for outlet.
func (t *Trainer) NewRun(outlet string) *Run {
	return &Run{
		Outlet:  outlet,
		trainer: t,
		logger:  t.Logger.With().Str("outlet", outlet).Logger(),
		state:   StateIdle,
	}
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) transition(to State) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.mu.Unlock()
	r.logger.Info().Str("from", string(from)).Str("to", string(to)).Msg("training state")
}

// Train runs a full training of outlet on target y and raw features x.
func (t *Trainer) Train(ctx context.Context, outlet string, y []float64, x [][]float64) (*Result, error) {
	return t.NewRun(outlet).Execute(ctx, y, x)
}

// Execute fits the transforms, screens orders within the budget, selects the
// final order, fits it fully and saves the bundle. Any failure leaves the run
// FAILED and nothing saved.
func (r *Run) Execute(ctx context.Context, y []float64, x [][]float64) (res *Result, err error) {
	if r.State() != StateIdle {
		return nil, ErrRunUsed
	}
	t := r.trainer
	tracer := t.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/sartorproj/fluxcast/trainer")
	}
	ctx, span := tracer.Start(ctx, "trainer.Execute", trace.WithAttributes(attribute.String("outlet", r.Outlet)))
	defer span.End()

	began := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			r.transition(StateFailed)
			r.logger.Error().Err(err).Msg("training failed")
		}
		t.Metrics.ObserveTraining(err)
	}()

	cfg := t.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := validate(y, x); err != nil {
		return nil, err
	}

	// Transforms
	exogScaler := &preprocess.StandardScaler{}
	xs, err := exogScaler.FitTransform(x)
	if err != nil {
		return nil, err
	}
	pca := &preprocess.PCA{}
	xp, err := pca.FitTransform(xs)
	if err != nil {
		return nil, err
	}
	targetScaler := &preprocess.StandardScaler{}
	if err := targetScaler.FitVector(y); err != nil {
		return nil, err
	}
	ys, err := targetScaler.TransformVector(y)
	if err != nil {
		return nil, err
	}
	names := pca.ComponentNames()

	method, acq := cfg.Strategy.resolve()

	// Screening
	r.transition(StateScreening)
	cands, trials, err := r.screen(ctx, cfg, acq, ys, xp, names)
	if err != nil {
		return nil, err
	}
	finalists := Finalists(cands, cfg.Finalists)
	for _, c := range finalists {
		r.logger.Info().
			Str("order", c.Order.String()).
			Float64("aic", c.AIC).
			Float64("corr", c.Correlation).
			Int("complexity", Complexity(c.Order)).
			Msg("finalist")
	}
	best, ok := Select(finalists)
	if !ok {
		return nil, ErrNoCandidate
	}
	r.logger.Info().Str("order", best.Order.String()).Msg("order selected")

	// Full fit
	r.transition(StateFullFit)
	model := sarima.New(best.Order, names)
	opts := sarima.DefaultFitOptions()
	opts.Method = method
	opts.Start = best.Params
	fitStart := time.Now()
	err = model.Fit(ys, xp, opts)
	t.Metrics.ObserveFit("full", time.Since(fitStart), err)
	if err != nil {
		return nil, fmt.Errorf("trainer: full fit %s: %w", best.Order, err)
	}
	corr := timeseries.Correlation(ys, model.FittedValues())

	res = &Result{
		Outlet:      r.Outlet,
		Order:       best.Order,
		AIC:         model.AIC,
		Correlation: corr,
		Trials:      trials,
		Quality:     quality(cfg)(model.AIC),
		Method:      method,
		Acquisition: acq,
		Converged:   model.Converged,
		Finalists:   finalists,
		LjungBox:    stats.LjungBox(finite(model.Residuals()), 10, best.Order.P+best.Order.Q+best.Order.SP+best.Order.SQ),
		NDiffs:      stats.NDiffs(y, 2, "kpss"),
		NDiffsADF:   stats.NDiffs(y, 2, "adf"),
	}
	r.diagnose(res, finite(model.Residuals()))

	// Save
	b := bundle.New(r.Outlet, model, exogScaler, pca, targetScaler)
	if t.Store != nil {
		if err := t.Store.Save(ctx, b); err != nil {
			return nil, fmt.Errorf("trainer: save: %w", err)
		}
	}
	res.RunID = b.RunID
	res.Bundle = b
	res.Duration = time.Since(began)
	r.transition(StateSaved)

	r.logger.Info().
		Str("run_id", b.RunID).
		Str("order", best.Order.String()).
		Float64("aic", res.AIC).
		Float64("corr", corr).
		Str("quality", res.Quality).
		Dur("duration", res.Duration).
		Msg("model saved")
	span.SetAttributes(attribute.String("order", best.Order.String()), attribute.Float64("aic", res.AIC))
	return res, nil
}

// screen runs the Bayesian order search and returns the fitted candidates and
// the number of fits performed.
func (r *Run) screen(ctx context.Context, cfg *Config, acq bayesopt.Acquisition, y []float64, x [][]float64, names []string) ([]Candidate, int, error) {
	t := r.trainer
	calls := cfg.Calls()
	bo := bayesopt.Config{
		Calls:         calls,
		InitialPoints: cfg.InitialPoints(calls),
		Acquisition:   acq,
		Seed:          cfg.Strategy.Seed,
	}
	r.logger.Info().
		Int("calls", bo.Calls).
		Int("initial_points", bo.InitialPoints).
		Str("acquisition", string(acq)).
		Dur("budget", cfg.Budget).
		Msg("order search started")

	type cached struct {
		aic  float64
		corr float64
		ok   bool
	}
	cache := make(map[sarima.Order]cached)
	var cands []Candidate
	started := time.Now()

	objective := func(_ context.Context, p []int) float64 {
		order := cfg.order(p)
		if order.Sum() > cfg.MaxOrderSum {
			return cfg.Penalty
		}
		if c, ok := cache[order]; ok {
			r.logger.Debug().Str("order", order.String()).Float64("aic", c.aic).Msg("cached trial")
			if !c.ok {
				return cfg.Penalty
			}
			return c.aic
		}

		model := sarima.New(order, names)
		fitStart := time.Now()
		err := model.Fit(y, x, sarima.ScreeningFitOptions())
		t.Metrics.ObserveFit("screening", time.Since(fitStart), err)
		t.Metrics.ObserveTrial()
		if err != nil || math.IsNaN(model.AIC) || math.IsInf(model.AIC, 0) {
			cache[order] = cached{}
			r.logger.Warn().Err(err).Str("order", order.String()).Msg("screening fit failed")
			return cfg.Penalty
		}

		corr := timeseries.Correlation(y, model.FittedValues())
		cache[order] = cached{aic: model.AIC, corr: corr, ok: true}
		cands = append(cands, Candidate{Order: order, AIC: model.AIC, Correlation: corr, Params: model.Params()})
		r.logger.Info().
			Int("trial", len(cands)).
			Str("order", order.String()).
			Float64("aic", model.AIC).
			Float64("corr", corr).
			Dur("elapsed", time.Since(started)).
			Msg("screening trial")
		return model.AIC
	}

	budgetCtx := ctx
	if cfg.Budget > 0 {
		var cancel context.CancelFunc
		budgetCtx, cancel = context.WithTimeout(ctx, cfg.Budget)
		defer cancel()
	}
	if _, err := bayesopt.Minimize(budgetCtx, cfg.Space(), objective, bo); err != nil && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if len(cands) == 0 {
		return nil, 0, ErrNoCandidate
	}
	return cands, len(cands), nil
}

func (r *Run) diagnose(res *Result, resid []float64) {
	res.DurbinWatson = stats.DurbinWatson(resid)
	if acf := stats.ACF(resid, residualLags); acf != nil {
		res.ResidualLags = stats.SignificantLags(acf, stats.ConfBound(len(resid)))
	}
	r.logger.Info().
		Float64("durbin_watson", res.DurbinWatson).
		Ints("significant_lags", res.ResidualLags).
		Msg("residual autocorrelation")

	if lb := res.LjungBox; lb != nil {
		ev := r.logger.Info()
		if !lb.WhiteNoise() {
			ev = r.logger.Warn()
		}
		ev.Float64("q", lb.Statistic).Float64("p_value", lb.PValue).Int("lags", lb.Lags).Msg("Ljung-Box on residuals")
	}
	if res.NDiffs != res.Order.D {
		r.logger.Warn().Int("suggested", res.NDiffs).Int("used", res.Order.D).Msg("differencing order differs from KPSS suggestion")
	}
	if res.NDiffsADF != res.NDiffs {
		r.logger.Warn().Int("kpss", res.NDiffs).Int("adf", res.NDiffsADF).Msg("stationarity tests disagree")
	}
}

// residualLags is the number of residual autocorrelation lags checked.
const residualLags = 12

func quality(cfg *Config) QualityPolicy {
	if cfg.Quality == nil {
		return DefaultQuality
	}
	return cfg.Quality
}

func validate(y []float64, x [][]float64) error {
	if len(y) == 0 {
		return fmt.Errorf("%w: empty target", ErrInvalidInput)
	}
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d feature rows for %d observations", ErrInvalidInput, len(x), len(y))
	}
	if n := timeseries.CountNaN(y); n > 0 {
		return fmt.Errorf("%w: %d missing target values", ErrInvalidInput, n)
	}
	for i, row := range x {
		if timeseries.CountNaN(row) > 0 {
			return fmt.Errorf("%w: missing feature in row %d", ErrInvalidInput, i)
		}
	}
	return nil
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
