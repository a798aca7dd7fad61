package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smart-parking/internal/parking"
)

type Options struct {
	Port        string
	ServiceName string
	Logger      *slog.Logger
	// Registry receives the HTTP metrics. A fresh registry with process and
	// Go collectors is used when nil.
	Registry *prometheus.Registry
}

type Server struct {
	httpServer *http.Server
	handler    *Handler
	logger     *slog.Logger
}

func NewServer(opts Options, service parking.Service, facility *parking.Facility) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics := newHTTPMetrics(registry)

	handler := NewHandler(service, facility, opts.ServiceName, logger)

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(logger))
	r.Use(RequestIDMiddleware)
	r.Use(OTelHTTPMiddleware(opts.ServiceName))
	r.Use(LoggingMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)

	r.Route("/api/parking", func(r chi.Router) {
		r.Post("/entry", handler.ParkVehicle)
		r.Post("/exit/{registration}", handler.ExitVehicle)
		r.Get("/vehicle/{registration}", handler.GetVehicle)
		r.Put("/bill/{sessionID}", handler.UpdateBill)
		r.Get("/active", handler.ActiveSessions)
	})

	r.Route("/api/parking-lots", func(r chi.Router) {
		r.Post("/", handler.CreateLot)
		r.Get("/", handler.ListLots)
		r.Post("/floors", handler.AddFloor)
		r.Get("/floors/{floorID}", handler.GetFloor)
		r.Get("/floors/{floorID}/slots", handler.ListSlots)
		r.Get("/{lotID}", handler.GetLot)
		r.Get("/{lotID}/floors", handler.ListFloors)
	})

	httpServer := &http.Server{
		Addr:         ":" + opts.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		logger:     logger,
	}
}

// Handler exposes the routed handler, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
