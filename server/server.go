// Package server exposes training, forecasting and the outlet registry over
// HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sartorproj/fluxcast/registry"
	"github.com/sartorproj/fluxcast/service"
)

// Backend runs trainings and forecasts. service.Service implements it.
type Backend interface {
	TrainOutlet(ctx context.Context, outlet string, budget time.Duration) (*service.TrainReport, error)
	TrainAll(ctx context.Context, budget time.Duration) (*service.Summary, error)
	Forecast(ctx context.Context, outlet string, start, end time.Time) (*service.Report, error)
}

// Catalog administers outlets and sectors. registry.Registry implements it.
type Catalog interface {
	Sectors(ctx context.Context) ([]registry.Sector, error)
	AddSector(ctx context.Context, name string) (registry.Sector, error)
	DeleteSector(ctx context.Context, id int64) error
	Outlets(ctx context.Context) ([]registry.Outlet, error)
	OutletsInSector(ctx context.Context, sectorID int64) ([]registry.Outlet, error)
	Outlet(ctx context.Context, name string) (registry.Outlet, error)
	AddOutlet(ctx context.Context, name string, sectorID int64) (registry.Outlet, error)
	DeleteOutlet(ctx context.Context, name string) error
}

// Server routes HTTP requests to the backend and the catalog.
type Server struct {
	Backend  Backend
	Catalog  Catalog // Optional; registry routes answer 404 without it
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger

	router *mux.Router
}

// New creates a server and registers its routes.
func New(backend Backend, catalog Catalog) *Server {
	s := &Server{
		Backend:  backend,
		Catalog:  catalog,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   zerolog.Nop(),
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.metrics).Methods(http.MethodGet)

	r.HandleFunc("/train", s.trainAll).Methods(http.MethodPost)
	r.HandleFunc("/outlets/{outlet}/train", s.trainOutlet).Methods(http.MethodPost)
	r.HandleFunc("/outlets/{outlet}/forecast", s.forecast).Methods(http.MethodGet)

	r.HandleFunc("/sectors", s.listSectors).Methods(http.MethodGet)
	r.HandleFunc("/sectors", s.addSector).Methods(http.MethodPost)
	r.HandleFunc("/sectors/{id:[0-9]+}", s.deleteSector).Methods(http.MethodDelete)
	r.HandleFunc("/sectors/{id:[0-9]+}/outlets", s.listSectorOutlets).Methods(http.MethodGet)
	r.HandleFunc("/outlets", s.listOutlets).Methods(http.MethodGet)
	r.HandleFunc("/outlets", s.addOutlet).Methods(http.MethodPost)
	r.HandleFunc("/outlets/{outlet}", s.getOutlet).Methods(http.MethodGet)
	r.HandleFunc("/outlets/{outlet}", s.deleteOutlet).Methods(http.MethodDelete)
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// Handler returns the routes wrapped with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.Logger}))(h)
	return handlers.LoggingHandler(s.Logger, h)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.Logger.Info().Str("addr", addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Logger.Info().Msg("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type recoveryLogger struct {
	logger zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Interface("panic", v).Msg("handler panicked")
}
