package web

import (
	"errors"
	"net/http"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/infra/logging"
)

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Code        string `json:"code" validate:"required,numeric,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

func (s *Server) handleTrial(w http.ResponseWriter, r *http.Request) {
	id, _ := userIDFrom(r.Context())
	u, err := s.uc.Trial.Claim(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrTrialAlreadyUsed):
		writeError(w, r, http.StatusConflict, "trial already used")
		return
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Int64("user_id", id).Msg("web trial failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeOK(w, r, http.StatusOK, toUserResponse(u))
}

// handleForgotPassword answers the same way whether or not the email is registered.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	if err := s.uc.PasswordReset.RequestReset(r.Context(), req.Email); err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("password reset request failed")
		writeError(w, r, http.StatusBadGateway, "could not send the reset code")
		return
	}
	writeOK(w, r, http.StatusAccepted, map[string]string{"message": "if the email is registered, a code was sent"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	err := s.uc.PasswordReset.Reset(r.Context(), req.Email, req.Code, req.NewPassword)
	switch {
	case errors.Is(err, domain.ErrResetCodeInvalid):
		writeError(w, r, http.StatusBadRequest, "invalid or expired code")
		return
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, "password too short")
		return
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("password reset failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeOK(w, r, http.StatusOK, map[string]string{"message": "password updated"})
}
