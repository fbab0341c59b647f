package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the forecasting pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Model fitting
	Fits        *prometheus.CounterVec
	FitDuration *prometheus.HistogramVec
	Trials      prometheus.Counter

	// Training runs per outlet
	TrainingRuns *prometheus.CounterVec

	// Weather API
	WeatherCalls *prometheus.CounterVec

	// Forecasting
	Forecasts      prometheus.Counter
	Degraded       *prometheus.CounterVec
	ModelsAppended prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Fits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxcast_model_fits_total",
				Help: "Number of SARIMAX fits by stage (screening, full) and outcome",
			},
			[]string{"stage", "outcome"},
		),
		FitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fluxcast_model_fit_seconds",
				Help:    "Duration of SARIMAX fits by stage",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"stage"},
		),
		Trials: factory.NewCounter(prometheus.CounterOpts{
			Name: "fluxcast_search_trials_total",
			Help: "Number of order-search objective evaluations, cached ones excluded",
		}),
		TrainingRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxcast_training_runs_total",
				Help: "Number of outlet training runs by outcome",
			},
			[]string{"outcome"},
		),
		WeatherCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxcast_weather_calls_total",
				Help: "Number of weather API calls by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		Forecasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "fluxcast_forecasts_total",
			Help: "Number of forecast reports produced",
		}),
		Degraded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxcast_degraded_results_total",
				Help: "Number of results produced with a caveat, by reason",
			},
			[]string{"reason"},
		),
		ModelsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "fluxcast_models_appended_total",
			Help: "Number of stored models extended with new observations",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveFit records one fit of the given stage.
func (m *Metrics) ObserveFit(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Fits.WithLabelValues(stage, outcome(err)).Inc()
	m.FitDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveTrial records one objective evaluation.
func (m *Metrics) ObserveTrial() {
	if m == nil {
		return
	}
	m.Trials.Inc()
}

// ObserveTraining records the outcome of one outlet training run.
func (m *Metrics) ObserveTraining(err error) {
	if m == nil {
		return
	}
	m.TrainingRuns.WithLabelValues(outcome(err)).Inc()
}

// ObserveWeatherCall records one weather API call.
func (m *Metrics) ObserveWeatherCall(endpoint string, err error) {
	if m == nil {
		return
	}
	m.WeatherCalls.WithLabelValues(endpoint, outcome(err)).Inc()
}

// ObserveForecast records one forecast report.
func (m *Metrics) ObserveForecast() {
	if m == nil {
		return
	}
	m.Forecasts.Inc()
}

// ObserveDegraded records a result returned with a caveat.
func (m *Metrics) ObserveDegraded(reason string) {
	if m == nil {
		return
	}
	m.Degraded.WithLabelValues(reason).Inc()
}

// ObserveAppend records a model extended without refitting.
func (m *Metrics) ObserveAppend() {
	if m == nil {
		return
	}
	m.ModelsAppended.Inc()
}
