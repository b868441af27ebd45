package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"
	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/infra/api"
	"vpn-subscription-bot/internal/infra/logging"
	"vpn-subscription-bot/internal/usecase"
)

// UseCases groups what the dashboard and the admin API call into.
type UseCases struct {
	User          usecase.UserUseCase
	Tariff        usecase.TariffUseCase
	Payment       usecase.PaymentUseCase
	Promo         usecase.PromoUseCase
	Trial         usecase.TrialUseCase
	Stats         usecase.StatsUseCase
	Broadcast     usecase.BroadcastUseCase
	Provisioning  usecase.ProvisioningUseCase
	PasswordReset usecase.PasswordResetUseCase
}

type Server struct {
	uc       UseCases
	auth     *AuthManager
	apiKey   string
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(uc UseCases, auth *AuthManager, apiKey string, logger *zerolog.Logger) *Server {
	compLog := logger.With().Str("component", "WebAPI").Logger()
	return &Server{
		uc:       uc,
		auth:     auth,
		apiKey:   apiKey,
		validate: validator.New(),
		log:      &compLog,
	}
}

type ctxKey struct{}

func userIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}

// RegisterRoutes mounts the dashboard under /api/web and the admin API under /api/admin.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/web", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/password/forgot", s.handleForgotPassword)
		r.Post("/password/reset", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Get("/profile", s.handleProfile)
			r.Get("/tariffs", s.handleTariffs)
			r.Get("/payments", s.handlePaymentHistory)
			r.Post("/payments", s.handleCreatePayment)
			r.Post("/trial", s.handleTrial)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(api.APIKey(s.apiKey, s.log))

		r.Get("/stats", s.handleStats)
		r.Get("/panel", s.handlePanelStatus)
		r.Post("/broadcast", s.handleBroadcast)

		r.Route("/tariffs", func(r chi.Router) {
			r.Get("/", s.handleTariffsList)
			r.Post("/", s.handleTariffCreate)
			r.Put("/{id}", s.handleTariffUpdate)
			r.Delete("/{id}", s.handleTariffDelete)
		})
		r.Route("/promos", func(r chi.Router) {
			r.Get("/", s.handlePromosList)
			r.Post("/", s.handlePromoCreate)
			r.Delete("/{id}", s.handlePromoDelete)
		})
		r.Route("/channels", func(r chi.Router) {
			r.Get("/", s.handleChannelsList)
			r.Post("/", s.handleChannelAdd)
			r.Delete("/{id}", s.handleChannelRemove)
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleUsersList)
			r.Get("/{id}", s.handleUserGet)
			r.Delete("/{id}", s.handleUserDelete)
			r.Post("/{id}/grant", s.handleUserGrant)
		})
	})
}

// sessionMiddleware resolves the dashboard user from the JWT session.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, _ := claims.UserID()
		ctx := logging.WithUserID(context.WithValue(r.Context(), ctxKey{}, id), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
