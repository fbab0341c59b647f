package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sartorproj/fluxcast/bundle"
	"github.com/sartorproj/fluxcast/exogenous"
	"github.com/sartorproj/fluxcast/metrics"
	"github.com/sartorproj/fluxcast/timeseries"
)

var (
	// ErrFeatureMismatch is returned when exogenous features do not have the
	// shape the bundle was trained on.
	ErrFeatureMismatch = errors.New("forecast: exogenous features do not match the model")
	// ErrInsufficientHistory is returned when there are too few residuals for
	// empirical bounds.
	ErrInsufficientHistory = errors.New("forecast: insufficient history for bounds")
	// ErrSchema is returned for future feature tables without usable dates.
	ErrSchema = errors.New("forecast: invalid feature table")
)

// Row is one forecast week. Lower and Upper are NaN when no interval could
// be computed.
type Row struct {
	Date     time.Time
	Forecast float64
	Lower    float64
	Upper    float64
}

// Result is a future forecast with the caveats met while producing it.
type Result struct {
	Rows    []Row
	Caveats []string
}

// HistorySource loads the weekly target of an outlet. history.Loader
// implements it.
type HistorySource interface {
	Load(outlet string) (*timeseries.Series, error)
}

// FeatureSource assembles weekly exogenous features. exogenous.Assembler
// implements it.
type FeatureSource interface {
	Assemble(ctx context.Context, start, end time.Time) (*exogenous.Table, error)
}

// Forecaster predicts with stored bundles.
type Forecaster struct {
	Store      bundle.Store  // Receives extended bundles; optional
	History    HistorySource // Needed by AutoUpdate
	Features   FeatureSource // Needed by AutoUpdate
	Confidence float64
	Window     int
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	Tracer     trace.Tracer
}

// New creates a forecaster with the default interval settings.
func New(store bundle.Store, history HistorySource, features FeatureSource) *Forecaster {
	return &Forecaster{
		Store:      store,
		History:    history,
		Features:   features,
		Confidence: DefaultConfidence,
		Window:     DefaultWindow,
		Logger:     zerolog.Nop(),
		Tracer:     otel.Tracer("github.com/sartorproj/fluxcast/forecast"),
	}
}

func (f *Forecaster) tracer() trace.Tracer {
	if f.Tracer == nil {
		return otel.Tracer("github.com/sartorproj/fluxcast/forecast")
	}
	return f.Tracer
}

// transform standardizes and projects raw feature rows with the bundle's
// transforms.
func transform(b *bundle.Bundle, x [][]float64) ([][]float64, error) {
	want := len(b.ExogScaler.Mean)
	for i, row := range x {
		if len(row) != want {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureMismatch, i, len(row), want)
		}
	}
	xs, err := b.ExogScaler.Transform(x)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeatureMismatch, err)
	}
	xp, err := b.PCA.Transform(xs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeatureMismatch, err)
	}
	if len(xp) > 0 && len(xp[0]) != len(b.Model.ExogNames) {
		return nil, fmt.Errorf("%w: %d components, model expects %d", ErrFeatureMismatch, len(xp[0]), len(b.Model.ExogNames))
	}
	return xp, nil
}

// InSample returns the model's one-step predictions, in customer counts, for
// the weeks of exog, which must start at the model's first observation. The
// result is cut to the shorter of exog and the model's observations.
func (f *Forecaster) InSample(b *bundle.Bundle, exog *exogenous.Table) ([]float64, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	xp, err := transform(b, exog.Features())
	if err != nil {
		return nil, err
	}
	if nobs := b.Model.NObs(); len(xp) != nobs {
		f.Logger.Warn().
			Str("outlet", b.Outlet).
			Int("rows", len(xp)).
			Int("nobs", nobs).
			Msg("in-sample length mismatch, truncating")
	}
	pred, err := b.Model.Predict(xp)
	if err != nil {
		return nil, err
	}
	return b.TargetScaler.InverseVector(pred)
}

func checkSchema(t *exogenous.Table) error {
	if t == nil || t.Len() == 0 {
		return fmt.Errorf("%w: no rows", ErrSchema)
	}
	for i, r := range t.Rows {
		if r.Date.IsZero() {
			return fmt.Errorf("%w: row %d has no date", ErrSchema, i)
		}
		if i > 0 && !r.Date.After(t.Rows[i-1].Date) {
			return fmt.Errorf("%w: dates not increasing at %s", ErrSchema, timeseries.FormatDate(r.Date))
		}
	}
	return nil
}

// Future forecasts the weeks of exog, which continue right after the model's
// observations. When train and trainPred are given, the rows carry empirical
// bounds from their residuals; too short a history leaves the bounds NaN and
// adds a caveat.
func (f *Forecaster) Future(ctx context.Context, b *bundle.Bundle, exog *exogenous.Table, train, trainPred []float64) (*Result, error) {
	_, span := f.tracer().Start(ctx, "forecast.Future",
		trace.WithAttributes(attribute.String("outlet", b.Outlet)))
	defer span.End()

	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := checkSchema(exog); err != nil {
		return nil, err
	}
	if err := exog.Validate(); err != nil {
		return nil, err
	}
	xp, err := transform(b, exog.Features())
	if err != nil {
		return nil, err
	}
	scaled, err := b.Model.Forecast(len(xp), xp)
	if err != nil {
		return nil, fmt.Errorf("forecast: predict: %w", err)
	}
	point, err := b.TargetScaler.InverseVector(scaled)
	if err != nil {
		return nil, err
	}

	res := &Result{Rows: make([]Row, len(point))}
	lower, upper := math.NaN(), math.NaN()
	if train != nil && trainPred != nil {
		lo, hi, err := EmpiricalBounds(train, trainPred, f.confidence(), f.Window)
		switch {
		case errors.Is(err, ErrInsufficientHistory):
			f.Logger.Warn().Err(err).Str("outlet", b.Outlet).Msg("forecast without bounds")
			f.Metrics.ObserveDegraded("bounds")
			res.Caveats = append(res.Caveats, "confidence bounds unavailable: "+err.Error())
		case err != nil:
			return nil, err
		default:
			lower, upper = lo, hi
		}
	}
	for i, v := range point {
		res.Rows[i] = Row{
			Date:     exog.Rows[i].Date,
			Forecast: v,
			Lower:    v + lower,
			Upper:    v + upper,
		}
	}

	f.Metrics.ObserveForecast()
	f.Logger.Info().
		Str("outlet", b.Outlet).
		Int("weeks", len(res.Rows)).
		Str("from", timeseries.FormatDate(exog.Rows[0].Date)).
		Msg("forecast computed")
	return res, nil
}

func (f *Forecaster) confidence() float64 {
	if f.Confidence <= 0 || f.Confidence >= 1 {
		return DefaultConfidence
	}
	return f.Confidence
}
