package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/infra/logging"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type createPaymentRequest struct {
	TariffID int64 `json:"tariff_id" validate:"required,gt=0"`
}

type userResponse struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email,omitempty"`
	FullName        string     `json:"full_name,omitempty"`
	Username        string     `json:"username,omitempty"`
	Origin          string     `json:"origin"`
	SubscriptionEnd *time.Time `json:"subscription_end,omitempty"`
	PanelUsername   string     `json:"panel_username,omitempty"`
	ReferrerID      *int64     `json:"referrer_id,omitempty"`
	BonusDays       int        `json:"referral_bonus_days"`
	FirstPayment    bool       `json:"is_first_payment_made"`
	HadTrial        bool       `json:"has_received_trial"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Email:           u.Email,
		FullName:        u.FullName,
		Username:        u.Username,
		Origin:          string(u.Origin()),
		SubscriptionEnd: u.SubscriptionEnd,
		PanelUsername:   u.PanelUsername,
		ReferrerID:      u.ReferrerID,
		BonusDays:       u.ReferralBonusDays,
		FirstPayment:    u.IsFirstPaymentMade,
		HadTrial:        u.HasReceivedTrial,
		CreatedAt:       u.CreatedAt,
	}
}

type tariffResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	PriceDisplay string `json:"price_display"`
	DurationDays int    `json:"duration_days"`
	IsActive     bool   `json:"is_active"`
}

func toTariffResponses(ts []*model.Tariff) []tariffResponse {
	out := make([]tariffResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, tariffResponse{
			ID:           t.ID,
			Name:         t.Name,
			Price:        t.Price,
			PriceDisplay: model.FormatAmount(t.Price),
			DurationDays: t.DurationDays,
			IsActive:     t.IsActive,
		})
	}
	return out
}

// decodeValid decodes a JSON body and runs the struct validator.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeValidation(w, r, err)
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	u, err := s.uc.User.RegisterWeb(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "email already registered")
		return
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, "invalid email or password")
		return
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("web register failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if _, err := s.auth.Mint(w, u.ID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeOK(w, r, http.StatusCreated, toUserResponse(u))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	u, err := s.uc.User.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("web login failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	token, err := s.auth.Mint(w, u.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeOK(w, r, http.StatusOK, map[string]any{"token": token, "user": toUserResponse(u)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	writeOK(w, r, http.StatusOK, nil)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := userIDFrom(r.Context())
	p, err := s.uc.User.Profile(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("profile failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	resp := map[string]any{
		"user":      toUserResponse(p.User),
		"active":    p.Active,
		"referrals": p.Referrals,
	}
	if p.Account != nil {
		resp["subscription_url"] = p.Account.SubscriptionURL
		resp["panel_status"] = p.Account.Status
	}
	writeOK(w, r, http.StatusOK, resp)
}

func (s *Server) handleTariffs(w http.ResponseWriter, r *http.Request) {
	ts, err := s.uc.Tariff.ListActive(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list tariffs")
		return
	}
	writeOK(w, r, http.StatusOK, toTariffResponses(ts))
}

// handleCreatePayment starts a checkout; the metadata source follows from the web user's id.
func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	id, _ := userIDFrom(r.Context())
	co, err := s.uc.Payment.Initiate(r.Context(), id, req.TariffID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "tariff not found")
		return
	case errors.Is(err, domain.ErrTariffInactive):
		writeError(w, r, http.StatusConflict, "tariff is not active")
		return
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Int64("tariff_id", req.TariffID).Msg("payment creation failed")
		writeError(w, r, http.StatusBadGateway, "payment provider error")
		return
	}
	writeOK(w, r, http.StatusCreated, map[string]any{
		"payment_id":       co.Intent.PaymentID,
		"confirmation_url": co.Intent.ConfirmationURL,
		"amount":           co.Amount,
		"discount_percent": co.DiscountPercent,
		"tariff":           co.Tariff.Name,
	})
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := userIDFrom(r.Context())
	ps, err := s.uc.Payment.History(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load payments")
		return
	}
	type item struct {
		PaymentID   string    `json:"payment_id"`
		TariffID    int64     `json:"tariff_id"`
		Amount      int64     `json:"amount"`
		Source      string    `json:"source"`
		ProcessedAt time.Time `json:"processed_at"`
	}
	out := make([]item, 0, len(ps))
	for _, p := range ps {
		out = append(out, item{p.PaymentID, p.TariffID, p.Amount, string(p.Source), p.ProcessedAt})
	}
	writeOK(w, r, http.StatusOK, out)
}
