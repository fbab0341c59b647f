package forecast

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sartorproj/fluxcast/bundle"
	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/timeseries"
)

// AutoUpdate appends to the bundle's model the weeks of history it has not
// seen, keeping its parameters, and saves the extended bundle. The input is
// returned untouched when there is nothing new or when the features of the
// new weeks cannot be assembled. Features of the wrong shape are an
// ErrFeatureMismatch.
func (f *Forecaster) AutoUpdate(ctx context.Context, b *bundle.Bundle) (*bundle.Bundle, error) {
	ctx, span := f.tracer().Start(ctx, "forecast.AutoUpdate",
		trace.WithAttributes(attribute.String("outlet", b.Outlet)))
	defer span.End()

	if err := b.Validate(); err != nil {
		return nil, err
	}
	logger := f.Logger.With().Str("outlet", b.Outlet).Logger()

	hist, err := f.History.Load(b.Outlet)
	if err != nil {
		return nil, err
	}
	nobs := b.Model.NObs()
	total := hist.Len()
	if total <= nobs {
		logger.Debug().Int("nobs", nobs).Int("history", total).Msg("model up to date")
		return b, nil
	}

	values := timeseries.FillForward(hist.Values)[nobs:]
	if timeseries.CountNaN(values) > 0 {
		logger.Warn().Msg("new weeks without target value, model left unchanged")
		return b, nil
	}
	fresh := hist.Slice(nobs, total)
	dates := fresh.Dates

	table, err := f.Features.Assemble(ctx, fresh.Start(), calendar.WeekContaining(fresh.End()).End)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Warn().Err(err).Msg("features unavailable for new weeks, model left unchanged")
		f.Metrics.ObserveDegraded("auto_update")
		return b, nil
	}
	aligned, missing := table.Align(dates)
	if missing > 0 {
		logger.Warn().Int("weeks", missing).Msg("new weeks missing from features, filling")
		if err := aligned.Fill(); err != nil {
			logger.Warn().Err(err).Msg("features incomplete for new weeks, model left unchanged")
			f.Metrics.ObserveDegraded("auto_update")
			return b, nil
		}
	}
	if err := aligned.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeatureMismatch, err)
	}

	xp, err := transform(b, aligned.Features())
	if err != nil {
		return nil, err
	}
	ys, err := b.TargetScaler.TransformVector(values)
	if err != nil {
		return nil, err
	}
	model, err := b.Model.Append(ys, xp)
	if err != nil {
		return nil, fmt.Errorf("forecast: append: %w", err)
	}

	out := b.WithModel(model)
	if f.Store != nil {
		if err := f.Store.Save(ctx, out); err != nil {
			return nil, fmt.Errorf("forecast: save extended bundle: %w", err)
		}
	}
	f.Metrics.ObserveAppend()
	logger.Info().
		Int("weeks", len(ys)).
		Int("nobs", model.NObs()).
		Str("through", timeseries.FormatDate(fresh.End())).
		Msg("model extended")
	return out, nil
}
