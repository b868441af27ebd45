//go:build !integration

package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
)

const testAPIKey = "admin-key"

type testEnv struct {
	router    http.Handler
	auth      *AuthManager
	users     *mockUserUC
	tariffs   *mockTariffUC
	payments  *mockPaymentUC
	stats     *mockStatsUC
	broadcast *mockBroadcastUC
	prov      *mockProvisioningUC
	trial     *mockTrialUC
	resets    *mockPasswordResetUC
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	end := time.Now().Add(10 * model.Day)
	web := &model.User{ID: -5, Email: "a@b.c", PasswordHash: "hash:password1", PanelUsername: "web_5", SubscriptionEnd: &end}
	tariffs := &mockTariffUC{tariffs: map[int64]*model.Tariff{
		1: {ID: 1, Name: "Month", Price: 19900, DurationDays: 30, IsActive: true},
		2: {ID: 2, Name: "Old", Price: 9900, DurationDays: 7, IsActive: false},
	}}
	env := &testEnv{
		auth:      NewAuthManager("test-secret", false, "", time.Hour),
		users:     newMockUserUC(web),
		tariffs:   tariffs,
		payments:  &mockPaymentUC{tariffs: tariffs},
		stats:     &mockStatsUC{},
		broadcast: &mockBroadcastUC{},
		prov:      &mockProvisioningUC{},
		trial:     &mockTrialUC{},
		resets:    &mockPasswordResetUC{codes: map[string]string{"a@b.c": "123456"}},
	}
	srv := NewServer(UseCases{
		User:          env.users,
		Tariff:        env.tariffs,
		Payment:       env.payments,
		Stats:         env.stats,
		Broadcast:     env.broadcast,
		Provisioning:  env.prov,
		Trial:         env.trial,
		PasswordReset: env.resets,
	}, env.auth, testAPIKey, &logger)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	env.router = r
	return env
}

func (e *testEnv) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) sessionFor(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := e.auth.Mint(httptest.NewRecorder(), userID)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	return "Bearer " + tok
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	t.Run("should register, set the session cookie and hide the password hash", func(t *testing.T) {
		// --- Arrange ---
		env := newTestEnv(t)

		// --- Act ---
		rr := env.do(http.MethodPost, "/api/web/register", `{"email":"new@x.io","password":"longenough"}`)

		// --- Assert ---
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		if !strings.Contains(rr.Header().Get("Set-Cookie"), "vpn_session=") {
			t.Error("expected a session cookie")
		}
		if strings.Contains(rr.Body.String(), "hash:") {
			t.Error("password hash leaked into the response")
		}
	})

	t.Run("should reject short passwords with a readable message", func(t *testing.T) {
		env := newTestEnv(t)
		rr := env.do(http.MethodPost, "/api/web/register", `{"email":"new@x.io","password":"short"}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
		if resp := decode(t, rr); !strings.Contains(resp.Error, "Password must be at least 8") {
			t.Errorf("unexpected error %q", resp.Error)
		}
	})

	t.Run("should map a taken email to 409", func(t *testing.T) {
		env := newTestEnv(t)
		env.users.registerErr = domain.ErrAlreadyExists
		rr := env.do(http.MethodPost, "/api/web/register", `{"email":"a@b.c","password":"longenough"}`)
		if rr.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("login should fail with 401 on a wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		rr := env.do(http.MethodPost, "/api/web/login", `{"email":"a@b.c","password":"wrongpass"}`)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("login should return a token that opens the profile", func(t *testing.T) {
		env := newTestEnv(t)
		rr := env.do(http.MethodPost, "/api/web/login", `{"email":"a@b.c","password":"password1"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		data := decode(t, rr).Data.(map[string]any)
		tok, _ := data["token"].(string)

		rr = env.do(http.MethodGet, "/api/web/profile", "", "Authorization", "Bearer "+tok)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "https://panel/sub/x") {
			t.Errorf("expected subscription url in profile, got %s", rr.Body.String())
		}
	})
}

func TestSessionMiddleware(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no session is 401", func(t *testing.T) {
		if rr := env.do(http.MethodGet, "/api/web/profile", ""); rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("tampered token is 401", func(t *testing.T) {
		tok := env.sessionFor(t, -5) + "x"
		if rr := env.do(http.MethodGet, "/api/web/profile", "", "Authorization", tok); rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("expired token is 401", func(t *testing.T) {
		stale := NewAuthManager("test-secret", false, "", time.Hour)
		stale.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tok, _ := stale.Mint(httptest.NewRecorder(), -5)
		if rr := env.do(http.MethodGet, "/api/web/profile", "", "Authorization", "Bearer "+tok); rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("cookie sessions are accepted", func(t *testing.T) {
		tok := strings.TrimPrefix(env.sessionFor(t, -5), "Bearer ")
		if rr := env.do(http.MethodGet, "/api/web/profile", "", "Cookie", "vpn_session="+tok); rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})
}

func TestCreatePayment(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"active tariff returns the confirmation url", `{"tariff_id":1}`, http.StatusCreated},
		{"inactive tariff is a conflict", `{"tariff_id":2}`, http.StatusConflict},
		{"unknown tariff is 404", `{"tariff_id":99}`, http.StatusNotFound},
		{"missing tariff id fails validation", `{}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			// --- Arrange ---
			env := newTestEnv(t)

			// --- Act ---
			rr := env.do(http.MethodPost, "/api/web/payments", c.body, "Authorization", env.sessionFor(t, -5))

			// --- Assert ---
			if rr.Code != c.want {
				t.Fatalf("expected %d, got %d: %s", c.want, rr.Code, rr.Body.String())
			}
			if c.want == http.StatusCreated {
				if !strings.Contains(rr.Body.String(), "https://yoomoney/checkout/pay-1") {
					t.Errorf("expected confirmation url, got %s", rr.Body.String())
				}
				if len(env.payments.initiated) != 1 || env.payments.initiated[0] != -5 {
					t.Errorf("payment must be initiated for the session user, got %v", env.payments.initiated)
				}
			}
		})
	}
}

func TestAdminRoutes(t *testing.T) {
	auth := []string{"Authorization", "Bearer " + testAPIKey}

	t.Run("admin routes need the api key", func(t *testing.T) {
		env := newTestEnv(t)
		if rr := env.do(http.MethodGet, "/api/admin/stats", ""); rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("stats default to the last day", func(t *testing.T) {
		env := newTestEnv(t)
		rr := env.do(http.MethodGet, "/api/admin/stats", "", auth...)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if d := time.Since(env.stats.since); d < 23*time.Hour || d > 25*time.Hour {
			t.Errorf("expected a 24h window, got %v", d)
		}
	})

	t.Run("stats reject a malformed since", func(t *testing.T) {
		env := newTestEnv(t)
		if rr := env.do(http.MethodGet, "/api/admin/stats?since=yesterday", "", auth...); rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("broadcast validates the audience", func(t *testing.T) {
		env := newTestEnv(t)
		if rr := env.do(http.MethodPost, "/api/admin/broadcast", `{"audience":"vip","text":"hi"}`, auth...); rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
		rr := env.do(http.MethodPost, "/api/admin/broadcast", `{"audience":"unpaid","text":"hi"}`, auth...)
		if rr.Code != http.StatusAccepted || env.broadcast.audience != model.AudienceUnpaid {
			t.Errorf("unexpected %d audience=%s", rr.Code, env.broadcast.audience)
		}
	})

	t.Run("tariff update keeps unspecified activity", func(t *testing.T) {
		env := newTestEnv(t)
		rr := env.do(http.MethodPut, "/api/admin/tariffs/2", `{"name":"Week","price":5000,"duration_days":7}`, auth...)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if env.tariffs.updated.Name != "Week" || env.tariffs.updated.IsActive {
			t.Errorf("unexpected update %+v", env.tariffs.updated)
		}
	})

	t.Run("deleting an unknown user is 404", func(t *testing.T) {
		env := newTestEnv(t)
		if rr := env.do(http.MethodDelete, "/api/admin/users/777", "", auth...); rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})
}

func TestUserGrant(t *testing.T) {
	auth := []string{"Authorization", "Bearer " + testAPIKey}
	user := &model.User{ID: 42, PanelUsername: "user_42"}

	cases := []struct {
		name string
		prov *mockProvisioningUC
		want int
	}{
		{"successful grant", &mockProvisioningUC{user: user}, http.StatusOK},
		{"panel failure after commit is accepted", &mockProvisioningUC{user: user, err: fmt.Errorf("wrap: %w", domain.ErrProvisioningFailed)}, http.StatusAccepted},
		{"unknown user", &mockProvisioningUC{}, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env := newTestEnv(t)
			*env.prov = *c.prov
			rr := env.do(http.MethodPost, "/api/admin/users/42/grant", `{"days":30}`, auth...)
			if rr.Code != c.want {
				t.Errorf("expected %d, got %d: %s", c.want, rr.Code, rr.Body.String())
			}
		})
	}

	t.Run("days must be positive", func(t *testing.T) {
		env := newTestEnv(t)
		if rr := env.do(http.MethodPost, "/api/admin/users/42/grant", `{"days":0}`, auth...); rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}
