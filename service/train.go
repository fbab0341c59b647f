package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sartorproj/fluxcast/events"
	"github.com/sartorproj/fluxcast/telemetry"
	"github.com/sartorproj/fluxcast/timeseries"
	"github.com/sartorproj/fluxcast/trainer"
)

// TrainReport is a saved training with its caveats.
type TrainReport struct {
	Result  *trainer.Result
	Weeks   int
	Caveats []string
}

// trainerWith returns the service trainer, with its budget replaced when budget
// is positive.
func (s *Service) trainerWith(budget time.Duration) *trainer.Trainer {
	if budget <= 0 {
		return s.Trainer
	}
	t := *s.Trainer
	cfg := trainer.DefaultConfig()
	if t.Config != nil {
		c := *t.Config
		cfg = &c
	}
	cfg.Budget = budget
	t.Config = cfg
	return &t
}

// TrainOutlet trains and saves a model for outlet on its whole history. A
// positive budget overrides the configured search budget.
func (s *Service) TrainOutlet(ctx context.Context, outlet string, budget time.Duration) (rep *TrainReport, err error) {
	ctx, span := s.tracer().Start(ctx, "service.TrainOutlet",
		trace.WithAttributes(attribute.String("outlet", outlet)))
	defer span.End()
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
			s.publish(ctx, events.Event{Kind: events.TrainingFailed, Outlet: outlet, Error: err.Error()})
		}
	}()

	hist, err := s.History.Load(outlet)
	if err != nil {
		return nil, err
	}
	if hist.Len() == 0 {
		return nil, fmt.Errorf("service: no history for %s", outlet)
	}

	table, caveats, err := s.features(ctx, hist)
	if err != nil {
		return nil, err
	}
	y := hist.Values
	if n := timeseries.CountNaN(y); n > 0 {
		y = timeseries.FillBackward(timeseries.FillForward(y))
		caveats = append(caveats, fmt.Sprintf("%d weeks without target value were filled", n))
		s.Logger.Warn().Str("outlet", outlet).Int("weeks", n).Msg("target gaps filled")
	}

	res, err := s.trainerWith(budget).Train(ctx, outlet, y, table.Features())
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Kind:    events.ModelTrained,
		Outlet:  outlet,
		RunID:   res.RunID,
		Order:   res.Order.String(),
		AIC:     res.AIC,
		Quality: res.Quality,
		Weeks:   len(y),
	})
	return &TrainReport{Result: res, Weeks: len(y), Caveats: caveats}, nil
}

// Outcome is the result of one outlet in TrainAll.
type Outcome struct {
	Outlet   string        `json:"outlet"`
	RunID    string        `json:"run_id,omitempty"`
	Order    string        `json:"order,omitempty"`
	AIC      float64       `json:"aic,omitempty"`
	Quality  string        `json:"quality,omitempty"`
	Duration time.Duration `json:"duration"`
	Caveats  []string      `json:"caveats,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Summary is the result of TrainAll.
type Summary struct {
	Outcomes []Outcome `json:"outcomes"`
	Trained  int       `json:"trained"`
	Failed   int       `json:"failed"`
}

// TrainAll trains every outlet in turn. An outlet that fails is logged and
// recorded; the others still run. Only cancellation stops the loop early.
func (s *Service) TrainAll(ctx context.Context, budget time.Duration) (*Summary, error) {
	outlets, err := s.Outlets(ctx)
	if err != nil {
		return nil, err
	}
	s.Logger.Info().Int("outlets", len(outlets)).Dur("budget", budget).Msg("training all outlets")

	sum := &Summary{}
	for _, outlet := range outlets {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		began := time.Now()
		rep, err := s.TrainOutlet(ctx, outlet, budget)
		o := Outcome{Outlet: outlet, Duration: elapsed(began)}
		if err != nil {
			s.Logger.Error().Err(err).Str("outlet", outlet).Msg("outlet training failed")
			o.Error = err.Error()
			sum.Failed++
			sum.Outcomes = append(sum.Outcomes, o)
			continue
		}
		o.RunID = rep.Result.RunID
		o.Order = rep.Result.Order.String()
		o.AIC = rep.Result.AIC
		o.Quality = rep.Result.Quality
		o.Caveats = rep.Caveats
		sum.Trained++
		sum.Outcomes = append(sum.Outcomes, o)
	}

	s.Logger.Info().Int("trained", sum.Trained).Int("failed", sum.Failed).Msg("training all outlets done")
	return sum, nil
}
