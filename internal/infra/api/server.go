package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/infra/logging"
	"vpn-subscription-bot/internal/usecase"
)

// maxWebhookBody bounds a gateway notification body.
const maxWebhookBody = 1 << 20

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server wires the payment webhook to the reconcile use case and serves health checks.
type Server struct {
	reconcile   usecase.ReconcileUseCase
	webhookPath string
	checks      map[string]HealthCheck
	log         *zerolog.Logger
}

func NewServer(reconcile usecase.ReconcileUseCase, webhookPath string, logger *zerolog.Logger) *Server {
	if webhookPath == "" {
		webhookPath = "/webhook/yookassa"
	}
	compLog := logger.With().Str("component", "WebhookAPI").Logger()
	return &Server{
		reconcile:   reconcile,
		webhookPath: webhookPath,
		checks:      map[string]HealthCheck{},
		log:         &compLog,
	}
}

func (s *Server) AddHealthCheck(name string, fn HealthCheck) { s.checks[name] = fn }

// Register attaches handlers to the router.
func (s *Server) Register(r chi.Router) {
	r.Post(s.webhookPath, s.handleWebhook)
	r.Get("/health", s.handleHealth)
}

// handleWebhook answers 400 for malformed notifications and 500 when the gateway
// should redeliver. Everything else, duplicates and unknown users included, is 200.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"outcome": string(usecase.OutcomeInvalid)})
		return
	}

	outcome, err := s.reconcile.HandleWebhook(r.Context(), body)
	l := logging.With(r.Context(), s.log)
	status := webhookStatus(outcome)
	if err != nil {
		ev := l.Warn()
		if status == http.StatusInternalServerError {
			ev = l.Error()
		}
		ev.Err(err).Str("outcome", string(outcome)).Msg("webhook not applied")
	}

	render.Status(r, status)
	render.JSON(w, r, map[string]string{"outcome": string(outcome)})
}

func webhookStatus(o usecase.Outcome) int {
	switch o {
	case usecase.OutcomeInvalid:
		return http.StatusBadRequest
	case usecase.OutcomeFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make(map[string]string, len(names))
	status := http.StatusOK
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				result[name] = "timeout"
			} else {
				result[name] = err.Error()
			}
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	render.Status(r, status)
	render.JSON(w, r, result)
}
