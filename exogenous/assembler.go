package exogenous

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/metrics"
	"github.com/sartorproj/fluxcast/weather"
)

// DefaultForecastDays is how far ahead the weather forecast is requested.
const DefaultForecastDays = 15

// HistorySource provides observed daily weather. weather.Store implements it.
type HistorySource interface {
	Load() ([]weather.Day, error)
}

// ForecastSource provides forecast daily weather. weather.Client implements it.
type ForecastSource interface {
	Forecast(ctx context.Context, start, end time.Time) ([]weather.Day, error)
}

// Assembler builds complete weekly feature tables.
type Assembler struct {
	History      HistorySource
	Forecast     ForecastSource // Optional
	ForecastDays int
	Now          func() time.Time
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
	Tracer       trace.Tracer
}

// NewAssembler creates an assembler over the given sources.
func NewAssembler(history HistorySource, forecast ForecastSource) *Assembler {
	return &Assembler{
		History:      history,
		Forecast:     forecast,
		ForecastDays: DefaultForecastDays,
		Now:          time.Now,
		Logger:       zerolog.Nop(),
		Tracer:       otel.Tracer("github.com/sartorproj/fluxcast/exogenous"),
	}
}

// Assemble returns one row per custom week of [start, end] with every feature
// present. Historical rows win over forecast rows for the same week; weeks
// with neither are imputed. A forecast failure is logged and only reduces the
// data available.
func (a *Assembler) Assemble(ctx context.Context, start, end time.Time) (*Table, error) {
	ctx, span := a.tracer().Start(ctx, "exogenous.Assemble",
		trace.WithAttributes(
			attribute.String("start", start.Format(time.DateOnly)),
			attribute.String("end", end.Format(time.DateOnly)),
		))
	defer span.End()

	grid := calendar.NewGrid(start, end)
	if grid.Len() == 0 {
		return &Table{}, nil
	}

	var historical []weather.Day
	if a.History != nil {
		days, err := a.History.Load()
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		historical = days
	}
	histRows := Weekly(historical, grid, SourceHistorical)

	forecastRows := Weekly(a.forecast(ctx, end), grid, SourceForecast)

	known := merge(histRows, forecastRows)

	var missing []calendar.Week
	for _, w := range grid.Weeks {
		if _, ok := known[w.Start]; !ok {
			missing = append(missing, w)
		}
	}

	knownRows := make([]Row, 0, len(known))
	for _, r := range known {
		knownRows = append(knownRows, r)
	}
	imputed := Impute(knownRows, missing)

	all := merge(knownRows, imputed)
	t := &Table{Rows: make([]Row, grid.Len())}
	for i, w := range grid.Weeks {
		r, ok := all[w.Start]
		if !ok {
			r = emptyRow(w)
		}
		r.Year, r.Week, r.DaysInWeek = w.Year, w.Number, float64(w.Days)
		t.Rows[i] = r
	}

	if err := t.Fill(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	a.Logger.Info().
		Time("start", grid.Weeks[0].Start).
		Int("weeks", grid.Len()).
		Int("historical", len(histRows)).
		Int("forecast", len(forecastRows)).
		Int("imputed", len(missing)).
		Msg("exogenous features assembled")
	span.SetAttributes(attribute.Int("weeks", grid.Len()), attribute.Int("imputed", len(missing)))
	return t, nil
}

// forecast fetches the short-range forecast when the window
// [today, min(today+ForecastDays, end)] is not empty.
func (a *Assembler) forecast(ctx context.Context, end time.Time) []weather.Day {
	if a.Forecast == nil {
		return nil
	}
	today := calendar.Normalize(a.now())
	horizon := a.ForecastDays
	if horizon <= 0 {
		horizon = DefaultForecastDays
	}
	last := today.AddDate(0, 0, horizon)
	if end = calendar.Normalize(end); end.Before(last) {
		last = end
	}
	if last.Before(today) {
		return nil
	}

	days, err := a.Forecast.Forecast(ctx, today, last)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("weather forecast unavailable, continuing without it")
		a.Metrics.ObserveDegraded("weather_forecast")
		return nil
	}
	return days
}

func (a *Assembler) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Assembler) tracer() trace.Tracer {
	if a.Tracer == nil {
		return otel.Tracer("github.com/sartorproj/fluxcast/exogenous")
	}
	return a.Tracer
}
