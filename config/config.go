// Package config loads the fluxcast configuration from a YAML file and
// FLUXCAST_* environment variables, the environment winning.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sartorproj/fluxcast/bayesopt"
	"github.com/sartorproj/fluxcast/forecast"
	"github.com/sartorproj/fluxcast/sarima"
	"github.com/sartorproj/fluxcast/telemetry"
	"github.com/sartorproj/fluxcast/trainer"
	"github.com/sartorproj/fluxcast/weather"
)

// Data locates the CSV stores.
type Data struct {
	HistoryPath string `yaml:"history_path"` // Weekly target per outlet
	WeatherPath string `yaml:"weather_path"` // Historical daily weather
	ModelsDir   string `yaml:"models_dir"`   // File bundle store root
}

// Weather configures the weather API client and fetcher.
type Weather struct {
	ForecastURL  string           `yaml:"forecast_url"`
	ArchiveURL   string           `yaml:"archive_url"`
	Location     weather.Location `yaml:"location"`
	ForecastDays int              `yaml:"forecast_days"`
	BatchSize    int              `yaml:"batch_size"`
	Timeout      time.Duration    `yaml:"timeout"`
}

// Training configures the order search.
type Training struct {
	Budget      time.Duration `yaml:"budget"`
	MaxCalls    int           `yaml:"max_calls"`
	Method      string        `yaml:"method"`
	Acquisition string        `yaml:"acquisition"`
	Seed        int64         `yaml:"seed"`
	Randomize   bool          `yaml:"randomize"`
}

// Forecast configures the empirical intervals.
type Forecast struct {
	Confidence float64 `yaml:"confidence"`
	Window     int     `yaml:"window"`
}

// Registry selects the outlet registry database.
type Registry struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// Bundles selects the model bundle store.
type Bundles struct {
	Backend   string `yaml:"backend"` // file or redis
	RedisAddr string `yaml:"redis_addr"`
	CacheSize int    `yaml:"cache_size"` // 0 disables the cache
}

// Events configures the Kafka publisher. No brokers disables publishing.
type Events struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `yaml:"addr"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Config is the full configuration.
type Config struct {
	Data     Data             `yaml:"data"`
	Weather  Weather          `yaml:"weather"`
	Training Training         `yaml:"training"`
	Forecast Forecast         `yaml:"forecast"`
	Registry Registry         `yaml:"registry"`
	Bundles  Bundles          `yaml:"bundles"`
	Events   Events           `yaml:"events"`
	Server   Server           `yaml:"server"`
	Log      Log              `yaml:"log"`
	Tracing  telemetry.Config `yaml:"tracing"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	tc := trainer.DefaultConfig()
	st := trainer.DefaultStrategy()
	return &Config{
		Data: Data{
			HistoryPath: "data/frequentation_hebdo.csv",
			WeatherPath: "data/meteo.csv",
			ModelsDir:   "models",
		},
		Weather: Weather{
			ForecastURL:  weather.DefaultForecastURL,
			ArchiveURL:   weather.DefaultArchiveURL,
			Location:     weather.DefaultLocation,
			ForecastDays: 15,
			BatchSize:    10,
			Timeout:      15 * time.Second,
		},
		Training: Training{
			Budget:      tc.Budget,
			MaxCalls:    tc.MaxCalls,
			Method:      string(st.Method),
			Acquisition: string(st.Acquisition),
			Seed:        st.Seed,
		},
		Forecast: Forecast{
			Confidence: forecast.DefaultConfidence,
			Window:     forecast.DefaultWindow,
		},
		Registry: Registry{Driver: "sqlite", DSN: "data/boutiques.db"},
		Bundles:  Bundles{Backend: "file", CacheSize: 32},
		Events:   Events{Topic: "fluxcast.models"},
		Server:   Server{Addr: ":8080"},
		Log:      Log{Level: "info", Format: "json"},
		Tracing:  telemetry.DefaultConfig(),
	}
}

// Load reads path over the defaults, then applies the environment. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FLUXCAST_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv("FLUXCAST_" + key)); v != "" {
			*dst = v
		}
	}
	str("HISTORY_PATH", &c.Data.HistoryPath)
	str("WEATHER_PATH", &c.Data.WeatherPath)
	str("MODELS_DIR", &c.Data.ModelsDir)
	str("REGISTRY_DRIVER", &c.Registry.Driver)
	str("REGISTRY_DSN", &c.Registry.DSN)
	str("BUNDLE_BACKEND", &c.Bundles.Backend)
	str("REDIS_ADDR", &c.Bundles.RedisAddr)
	str("KAFKA_TOPIC", &c.Events.Topic)
	str("HTTP_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("OTLP_ENDPOINT", &c.Tracing.Endpoint)
	str("TRAINING_METHOD", &c.Training.Method)
	str("TRAINING_ACQUISITION", &c.Training.Acquisition)

	if v := strings.TrimSpace(getenv("FLUXCAST_KAFKA_BROKERS")); v != "" {
		c.Events.Brokers = splitAndTrim(v, ",")
	}
	if v := strings.TrimSpace(getenv("FLUXCAST_TRAINING_BUDGET")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: FLUXCAST_TRAINING_BUDGET: %w", err)
		}
		c.Training.Budget = d
	}
	if v := strings.TrimSpace(getenv("FLUXCAST_TRAINING_SEED")); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: FLUXCAST_TRAINING_SEED: %w", err)
		}
		c.Training.Seed = seed
	}
	if v := strings.TrimSpace(getenv("FLUXCAST_TRAINING_RANDOMIZE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: FLUXCAST_TRAINING_RANDOMIZE: %w", err)
		}
		c.Training.Randomize = b
	}
	return nil
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if c.Training.Budget <= 0 {
		errs = append(errs, errors.New("training.budget must be positive"))
	}
	if c.Training.Method != "" {
		if _, err := sarima.ParseMethod(c.Training.Method); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Training.Acquisition != "" {
		if _, err := bayesopt.ParseAcquisition(c.Training.Acquisition); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Forecast.Confidence <= 0 || c.Forecast.Confidence >= 1 {
		errs = append(errs, fmt.Errorf("forecast.confidence %v outside (0, 1)", c.Forecast.Confidence))
	}
	switch c.Bundles.Backend {
	case "file":
	case "redis":
		if c.Bundles.RedisAddr == "" {
			errs = append(errs, errors.New("bundles.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown bundles.backend %q", c.Bundles.Backend))
	}
	if len(c.Events.Brokers) > 0 && c.Events.Topic == "" {
		errs = append(errs, errors.New("events.topic is required with brokers"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// TrainerConfig returns the search configuration.
func (c *Config) TrainerConfig() *trainer.Config {
	tc := trainer.DefaultConfig()
	tc.Budget = c.Training.Budget
	if c.Training.MaxCalls > 0 {
		tc.MaxCalls = c.Training.MaxCalls
	}
	method, _ := sarima.ParseMethod(c.Training.Method)
	acq, _ := bayesopt.ParseAcquisition(c.Training.Acquisition)
	tc.Strategy = trainer.Strategy{
		Method:      method,
		Acquisition: acq,
		Seed:        c.Training.Seed,
		Randomize:   c.Training.Randomize,
	}
	return tc
}
