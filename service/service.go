package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sartorproj/fluxcast/bundle"
	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/events"
	"github.com/sartorproj/fluxcast/exogenous"
	"github.com/sartorproj/fluxcast/forecast"
	"github.com/sartorproj/fluxcast/metrics"
	"github.com/sartorproj/fluxcast/registry"
	"github.com/sartorproj/fluxcast/timeseries"
	"github.com/sartorproj/fluxcast/trainer"
)

// HistorySource loads weekly targets. history.Loader implements it.
type HistorySource interface {
	Load(outlet string) (*timeseries.Series, error)
	Outlets() ([]string, error)
}

// OutletLister lists the registered outlets. registry.Registry implements it.
type OutletLister interface {
	Outlets(ctx context.Context) ([]registry.Outlet, error)
}

// Service runs trainings and forecasts.
type Service struct {
	History    HistorySource
	Features   forecast.FeatureSource
	Bundles    bundle.Store
	Trainer    *trainer.Trainer
	Forecaster *forecast.Forecaster
	Registry   OutletLister // Optional; the history columns otherwise
	Events     events.Publisher
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	Tracer     trace.Tracer
}

// New creates a service with a default trainer and forecaster over store.
func New(history HistorySource, features forecast.FeatureSource, store bundle.Store) *Service {
	return &Service{
		History:    history,
		Features:   features,
		Bundles:    store,
		Trainer:    trainer.New(store, nil),
		Forecaster: forecast.New(store, history, features),
		Events:     events.Nop{},
		Logger:     zerolog.Nop(),
		Tracer:     otel.Tracer("github.com/sartorproj/fluxcast/service"),
	}
}

func (s *Service) tracer() trace.Tracer {
	if s.Tracer == nil {
		return otel.Tracer("github.com/sartorproj/fluxcast/service")
	}
	return s.Tracer
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		s.Logger.Warn().Err(err).Str("kind", string(e.Kind)).Str("outlet", e.Outlet).Msg("event not published")
	}
}

// Outlets lists the outlets to work on, from the registry when it has any,
// from the target store columns otherwise.
func (s *Service) Outlets(ctx context.Context) ([]string, error) {
	if s.Registry == nil {
		return s.History.Outlets()
	}
	outlets, err := s.Registry.Outlets(ctx)
	if err != nil {
		return nil, err
	}
	if len(outlets) == 0 {
		s.Logger.Warn().Msg("registry has no outlets, using target store columns")
		return s.History.Outlets()
	}
	names := make([]string, len(outlets))
	for i, o := range outlets {
		names[i] = o.Name
	}
	return names, nil
}

// features assembles the exogenous rows of the weeks of hist, the last one
// in full. Weeks the assembler did not return are filled and reported.
func (s *Service) features(ctx context.Context, hist *timeseries.Series) (*exogenous.Table, []string, error) {
	table, err := s.Features.Assemble(ctx, hist.Start(), calendar.WeekContaining(hist.End()).End)
	if err != nil {
		return nil, nil, err
	}
	aligned, missing := table.Align(hist.Dates)
	if missing == 0 {
		return aligned, nil, nil
	}
	s.Logger.Warn().Str("outlet", hist.Name).Int("weeks", missing).Msg("features missing for history weeks, filling")
	if err := aligned.Fill(); err != nil {
		return nil, nil, err
	}
	return aligned, []string{fmt.Sprintf("%d history weeks had no exogenous features and were filled", missing)}, nil
}

func elapsed(since time.Time) time.Duration {
	return time.Since(since).Round(time.Millisecond)
}
