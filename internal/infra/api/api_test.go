//go:build !integration

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/infra/logging"
	"vpn-subscription-bot/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

type mockReconcile struct {
	outcome usecase.Outcome
	err     error
	body    string
}

func (m *mockReconcile) HandleWebhook(ctx context.Context, body []byte) (usecase.Outcome, error) {
	m.body = string(body)
	return m.outcome, m.err
}

func (m *mockReconcile) HandleNotification(ctx context.Context, n *model.PaymentNotification) (usecase.Outcome, error) {
	return m.outcome, m.err
}

func TestWebhookStatusMapping(t *testing.T) {
	cases := []struct {
		outcome usecase.Outcome
		err     error
		want    int
	}{
		{usecase.OutcomeProcessed, nil, http.StatusOK},
		{usecase.OutcomeDuplicate, nil, http.StatusOK},
		{usecase.OutcomeIgnored, nil, http.StatusOK},
		{usecase.OutcomeUserMissing, domain.ErrNotFound, http.StatusOK},
		{usecase.OutcomeInvalid, domain.ErrInvalidArgument, http.StatusBadRequest},
		{usecase.OutcomeFailed, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(string(c.outcome), func(t *testing.T) {
			// --- Arrange ---
			rec := &mockReconcile{outcome: c.outcome, err: c.err}
			srv := NewServer(rec, "/webhook/yookassa", newTestLogger())
			r := chi.NewRouter()
			srv.Register(r)
			req := httptest.NewRequest(http.MethodPost, "/webhook/yookassa", strings.NewReader(`{"event":"payment.succeeded"}`))
			rr := httptest.NewRecorder()

			// --- Act ---
			r.ServeHTTP(rr, req)

			// --- Assert ---
			if rr.Code != c.want {
				t.Errorf("expected %d, got %d", c.want, rr.Code)
			}
			if rec.body != `{"event":"payment.succeeded"}` {
				t.Errorf("body not passed through: %q", rec.body)
			}
			var resp map[string]string
			_ = json.Unmarshal(rr.Body.Bytes(), &resp)
			if resp["outcome"] != string(c.outcome) {
				t.Errorf("expected outcome %s in response, got %v", c.outcome, resp)
			}
		})
	}
}

func TestWebhookOnlyAcceptsPost(t *testing.T) {
	srv := NewServer(&mockReconcile{outcome: usecase.OutcomeProcessed}, "", newTestLogger())
	r := chi.NewRouter()
	srv.Register(r)
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook/yookassa", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := NewServer(&mockReconcile{}, "", newTestLogger())
	srv.AddHealthCheck("postgres", func(ctx context.Context) error { return nil })
	r := chi.NewRouter()
	srv.Register(r)

	t.Run("all checks pass", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"postgres":"ok"`) {
			t.Errorf("unexpected %d %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("a failing check turns readiness red", func(t *testing.T) {
		srv.AddHealthCheck("redis", func(ctx context.Context) error { return fmt.Errorf("connection refused") })
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "connection refused") {
			t.Errorf("unexpected %d %s", rr.Code, rr.Body.String())
		}
	})
}

func TestAPIKey(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	protected := APIKey("secret", newTestLogger())(ok)

	cases := map[string]struct {
		header string
		want   int
	}{
		"no credentials":    {"", http.StatusUnauthorized},
		"no scheme":         {"secret", http.StatusUnauthorized},
		"wrong scheme":      {"Basic secret", http.StatusUnauthorized},
		"wrong key":         {"Bearer nope", http.StatusForbidden},
		"valid key":         {"Bearer secret", http.StatusOK},
		"case-blind scheme": {"bearer secret", http.StatusOK},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			rr := httptest.NewRecorder()
			protected.ServeHTTP(rr, req)
			if rr.Code != c.want {
				t.Errorf("expected %d, got %d", c.want, rr.Code)
			}
		})
	}

	t.Run("empty key disables the routes", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ")
		APIKey("", newTestLogger())(ok).ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
	})
}

func TestTraceIDAndRecover(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.TraceIDFrom(r.Context())
		panic("boom")
	}), TraceID(), Recover(newTestLogger()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "trace-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != "trace-123" || rr.Header().Get(TraceHeader) != "trace-123" {
		t.Errorf("expected the incoming trace id to be kept, got %q / %q", seen, rr.Header().Get(TraceHeader))
	}
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after a panic, got %d", rr.Code)
	}
}
