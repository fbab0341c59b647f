package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/sartorproj/fluxcast/bundle"
	"github.com/sartorproj/fluxcast/config"
	"github.com/sartorproj/fluxcast/events"
	"github.com/sartorproj/fluxcast/exogenous"
	"github.com/sartorproj/fluxcast/history"
	"github.com/sartorproj/fluxcast/metrics"
	"github.com/sartorproj/fluxcast/registry"
	"github.com/sartorproj/fluxcast/service"
	"github.com/sartorproj/fluxcast/telemetry"
	"github.com/sartorproj/fluxcast/weather"
)

// app holds the wired components of one command invocation.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	weatherClient *weather.Client
	weatherStore  *weather.Store
	fetcher       *weather.Fetcher
	history       *history.Loader
	bundles       bundle.Store
	registry      *registry.Registry // nil when the database cannot be opened
	events        events.Publisher
	service       *service.Service

	closers []func(context.Context) error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newApp wires the components described by cfg. The registry is optional:
// without it outlets come from the target store columns.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := telemetry.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	shutdown, err := telemetry.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(reg)
	a.gatherer = reg

	// Weather
	a.weatherClient = weather.NewClient(cfg.Weather.Location)
	a.weatherClient.ForecastURL = cfg.Weather.ForecastURL
	a.weatherClient.ArchiveURL = cfg.Weather.ArchiveURL
	a.weatherClient.HTTPClient.Timeout = cfg.Weather.Timeout
	a.weatherClient.Logger = logger.With().Str("component", "weather").Logger()
	a.weatherClient.Metrics = a.metrics
	a.weatherStore = &weather.Store{Path: cfg.Data.WeatherPath}
	a.fetcher = weather.NewFetcher(a.weatherClient)
	a.fetcher.BatchSize = cfg.Weather.BatchSize
	a.fetcher.Logger = a.weatherClient.Logger

	assembler := exogenous.NewAssembler(a.weatherStore, a.weatherClient)
	assembler.ForecastDays = cfg.Weather.ForecastDays
	assembler.Logger = logger.With().Str("component", "exogenous").Logger()
	assembler.Metrics = a.metrics

	a.history = history.NewLoader(cfg.Data.HistoryPath)
	a.history.Logger = logger.With().Str("component", "history").Logger()

	if a.bundles, err = a.openBundles(); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.registry, err = registry.Open(ctx, cfg.Registry.Driver, cfg.Registry.DSN)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Registry.Driver).Msg("outlet registry unavailable, using target store columns")
		a.registry = nil
	} else {
		a.registry.Bundles = a.bundles
		a.registry.Logger = logger.With().Str("component", "registry").Logger()
		if err := a.registry.Init(ctx); err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return a.registry.Close() })
	}

	a.events = events.Nop{}
	if len(cfg.Events.Brokers) > 0 {
		p := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		p.Logger = logger.With().Str("component", "events").Logger()
		a.events = p
		a.closers = append(a.closers, func(context.Context) error { return p.Close() })
	}

	svc := service.New(a.history, assembler, a.bundles)
	svc.Trainer.Config = cfg.TrainerConfig()
	svc.Trainer.Logger = logger.With().Str("component", "trainer").Logger()
	svc.Trainer.Metrics = a.metrics
	svc.Forecaster.Confidence = cfg.Forecast.Confidence
	svc.Forecaster.Window = cfg.Forecast.Window
	svc.Forecaster.Logger = logger.With().Str("component", "forecast").Logger()
	svc.Forecaster.Metrics = a.metrics
	svc.Events = a.events
	svc.Logger = logger.With().Str("component", "service").Logger()
	svc.Metrics = a.metrics
	svc.Tracer = otel.Tracer("github.com/sartorproj/fluxcast/service")
	if a.registry != nil {
		svc.Registry = a.registry
	}
	a.service = svc
	return a, nil
}

func (a *app) openBundles() (bundle.Store, error) {
	var store bundle.Store
	switch a.cfg.Bundles.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: a.cfg.Bundles.RedisAddr})
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		store = bundle.NewRedisStore(bundle.NewRedisClient(client), "")
	case "file", "":
		store = bundle.NewFileStore(a.cfg.Data.ModelsDir)
	default:
		return nil, fmt.Errorf("unknown bundle backend %q", a.cfg.Bundles.Backend)
	}
	if a.cfg.Bundles.CacheSize <= 0 {
		return store, nil
	}
	return bundle.NewCachedStore(store, a.cfg.Bundles.CacheSize)
}

// requireRegistry fails the admin commands when no registry is open.
func (a *app) requireRegistry() (*registry.Registry, error) {
	if a.registry == nil {
		return nil, errors.New("outlet registry unavailable; check registry.driver and registry.dsn")
	}
	return a.registry, nil
}

// Close releases the components in reverse order of creation.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
