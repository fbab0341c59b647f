package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/events"
	"github.com/sartorproj/fluxcast/exogenous"
	"github.com/sartorproj/fluxcast/forecast"
	"github.com/sartorproj/fluxcast/history"
	"github.com/sartorproj/fluxcast/telemetry"
	"github.com/sartorproj/fluxcast/timeseries"
)

// ErrRange is returned for a forecast range that is empty or entirely
// observed already.
var ErrRange = errors.New("service: invalid forecast range")

// Week is one week of a forecast report. Lag and bound fields are NaN when
// unknown.
type Week struct {
	Date        time.Time
	Year        int
	Week        int
	Forecast    float64
	Lower       float64
	Upper       float64
	LastYear    float64 // Same custom week, N-1
	TwoYearsAgo float64 // Same custom week, N-2
	Source      exogenous.Source
}

// Report is the forecast of an outlet over a date range.
type Report struct {
	Outlet     string
	RunID      string
	Order      string
	Start      time.Time
	End        time.Time
	Weeks      []Week
	Total      float64
	TotalLower float64
	TotalUpper float64
	Caveats    []string
}

// Forecast loads the outlet's bundle, brings it up to date with the latest
// history and forecasts the weeks overlapping [start, end]. Totals cover the
// days of the range only.
func (s *Service) Forecast(ctx context.Context, outlet string, start, end time.Time) (rep *Report, err error) {
	ctx, span := s.tracer().Start(ctx, "service.Forecast",
		trace.WithAttributes(
			attribute.String("outlet", outlet),
			attribute.String("start", timeseries.FormatDate(start)),
			attribute.String("end", timeseries.FormatDate(end)),
		))
	defer span.End()
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		}
	}()

	start, end = calendar.Normalize(start), calendar.Normalize(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrRange, timeseries.FormatDate(end), timeseries.FormatDate(start))
	}

	b, err := s.Bundles.Load(ctx, outlet)
	if err != nil {
		return nil, err
	}
	b, err = s.Forecaster.AutoUpdate(ctx, b)
	if err != nil {
		return nil, err
	}

	hist, err := s.History.Load(outlet)
	if err != nil {
		return nil, err
	}
	nobs := b.Model.NObs()
	if hist.Len() < nobs {
		return nil, fmt.Errorf("service: %s history has %d weeks, model holds %d", outlet, hist.Len(), nobs)
	}
	train := hist.Slice(0, nobs)

	trainTable, caveats, err := s.features(ctx, train)
	if err != nil {
		return nil, err
	}
	trainPred, err := s.Forecaster.InSample(b, trainTable)
	if err != nil {
		return nil, err
	}

	// Model positions continue right after the last observed week.
	from := calendar.WeekContaining(train.End()).End.AddDate(0, 0, 1)
	if end.Before(from) {
		return nil, fmt.Errorf("%w: %s is observed through %s", ErrRange, outlet, timeseries.FormatDate(train.End()))
	}
	if start.Before(from) {
		caveats = append(caveats, "weeks before "+timeseries.FormatDate(from)+" are already observed")
		start = from
	}

	future, err := s.Features.Assemble(ctx, from, end)
	if err != nil {
		return nil, err
	}
	res, err := s.Forecaster.Future(ctx, b, future, train.Values, trainPred)
	if err != nil {
		return nil, err
	}
	caveats = append(caveats, res.Caveats...)

	rep = &Report{
		Outlet:  outlet,
		RunID:   b.RunID,
		Order:   b.Model.Order.String(),
		Start:   start,
		End:     end,
		Caveats: caveats,
	}
	var rows []forecast.Row
	var dates []time.Time
	imputed := 0
	for i, r := range res.Rows {
		if calendar.WeekContaining(r.Date).End.Before(start) {
			continue
		}
		x := future.Rows[i]
		rows = append(rows, r)
		dates = append(dates, r.Date)
		rep.Weeks = append(rep.Weeks, Week{
			Date:     r.Date,
			Year:     x.Year,
			Week:     x.Week,
			Forecast: r.Forecast,
			Lower:    r.Lower,
			Upper:    r.Upper,
			Source:   x.Source,
		})
		if x.Source == exogenous.SourceImputed {
			imputed++
		}
	}
	if imputed > 0 {
		rep.Caveats = append(rep.Caveats, fmt.Sprintf("%d weeks use imputed weather", imputed))
	}

	lags := history.NewLagTable(hist, dates, 1, 2)
	for i := range rep.Weeks {
		rep.Weeks[i].LastYear = lags.Values[i][0]
		rep.Weeks[i].TwoYearsAgo = lags.Values[i][1]
	}

	if err := rep.total(rows); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Kind: events.ForecastComputed, Outlet: outlet, RunID: b.RunID, Weeks: len(rep.Weeks)})
	s.Logger.Info().
		Str("outlet", outlet).
		Int("weeks", len(rep.Weeks)).
		Float64("total", rep.Total).
		Int("caveats", len(rep.Caveats)).
		Msg("forecast report ready")
	return rep, nil
}

// total sums the rows over the days of the report range.
func (r *Report) total(rows []forecast.Row) error {
	var days []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}

	var err error
	if r.Total, err = forecast.AggregateWeekly(rows, days, forecast.ColumnForecast); err != nil {
		return err
	}
	r.TotalLower, r.TotalUpper = math.NaN(), math.NaN()
	if len(rows) > 0 && !math.IsNaN(rows[0].Lower) {
		if r.TotalLower, err = forecast.AggregateWeekly(rows, days, forecast.ColumnLower); err != nil {
			return err
		}
		if r.TotalUpper, err = forecast.AggregateWeekly(rows, days, forecast.ColumnUpper); err != nil {
			return err
		}
	}
	return nil
}
