package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/config"
	"vpn-subscription-bot/internal/infra/api"
	"vpn-subscription-bot/internal/infra/web"
)

// Server is the single HTTP listener: payment webhook, health, metrics, dashboard and admin API.
type Server struct {
	cfg    *config.HTTPConfig
	router chi.Router
	server *http.Server
	log    *zerolog.Logger
}

func NewServer(cfg *config.HTTPConfig, webhook *api.Server, dashboard *web.Server, logger *zerolog.Logger) *Server {
	compLog := logger.With().Str("component", "HTTPServer").Logger()

	r := chi.NewRouter()
	r.Use(api.TraceID(), api.Recover(&compLog), api.RequestLog(&compLog))
	if cfg.RequestTimeout > 0 {
		r.Use(api.Timeout(cfg.RequestTimeout))
	}

	webhook.Register(r)
	if dashboard != nil {
		dashboard.RegisterRoutes(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	return &Server{cfg: cfg, router: r, log: &compLog}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
