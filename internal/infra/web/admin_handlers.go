package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/infra/logging"
)

const (
	defaultStatsWindow = 24 * time.Hour
	defaultPageSize    = 50
	maxPageSize        = 500
)

type broadcastRequest struct {
	Audience string `json:"audience" validate:"required,oneof=all unpaid"`
	Text     string `json:"text" validate:"required,max=4096"`
}

type tariffRequest struct {
	Name         string `json:"name" validate:"required,max=64"`
	Price        int64  `json:"price" validate:"required,gt=0"`
	DurationDays int    `json:"duration_days" validate:"required,gt=0,lte=3650"`
	IsActive     *bool  `json:"is_active"`
}

type promoRequest struct {
	Code            string     `json:"code" validate:"required,max=32"`
	BonusDays       int        `json:"bonus_days" validate:"gte=0,lte=3650"`
	DiscountPercent int        `json:"discount_percent" validate:"gte=0,lte=99"`
	MaxUses         int        `json:"max_uses" validate:"required,gt=0"`
	ExpireDate      *time.Time `json:"expire_date"`
}

type channelRequest struct {
	ID         int64  `json:"id" validate:"required"`
	Title      string `json:"title" validate:"required,max=128"`
	InviteLink string `json:"invite_link" validate:"required,url"`
}

type grantRequest struct {
	Days int `json:"days" validate:"required,gt=0,lte=3650"`
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id != 0
}

// handleStats takes an optional RFC 3339 "since"; new users are counted from there.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-defaultStatsWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		since = t
	}
	st, err := s.uc.Stats.Overview(r.Context(), since)
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("stats overview failed")
		writeError(w, r, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeOK(w, r, http.StatusOK, st)
}

func (s *Server) handlePanelStatus(w http.ResponseWriter, r *http.Request) {
	ps, err := s.uc.Stats.PanelStatus(r.Context())
	if err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("panel status unavailable")
		writeError(w, r, http.StatusBadGateway, "panel unavailable")
		return
	}
	writeOK(w, r, http.StatusOK, ps)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	runID, n, err := s.uc.Broadcast.Broadcast(r.Context(), model.BroadcastAudience(req.Audience), req.Text)
	if errors.Is(err, domain.ErrInvalidArgument) {
		writeError(w, r, http.StatusBadRequest, "invalid broadcast")
		return
	}
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("broadcast failed")
		writeError(w, r, http.StatusInternalServerError, "broadcast failed")
		return
	}
	writeOK(w, r, http.StatusAccepted, map[string]any{"run_id": runID, "recipients": n})
}

func (s *Server) handleTariffsList(w http.ResponseWriter, r *http.Request) {
	ts, err := s.uc.Tariff.ListAll(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list tariffs")
		return
	}
	writeOK(w, r, http.StatusOK, toTariffResponses(ts))
}

func (s *Server) handleTariffCreate(w http.ResponseWriter, r *http.Request) {
	var req tariffRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	t, err := s.uc.Tariff.Create(r.Context(), req.Name, req.Price, req.DurationDays)
	if errors.Is(err, domain.ErrInvalidArgument) {
		writeError(w, r, http.StatusBadRequest, "invalid tariff")
		return
	}
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("tariff create failed")
		writeError(w, r, http.StatusInternalServerError, "failed to create tariff")
		return
	}
	writeOK(w, r, http.StatusCreated, toTariffResponses([]*model.Tariff{t})[0])
}

func (s *Server) handleTariffUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req tariffRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	t, err := s.uc.Tariff.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "tariff not found")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load tariff")
		return
	}
	t.Name = req.Name
	t.Price = req.Price
	t.DurationDays = req.DurationDays
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := s.uc.Tariff.Update(r.Context(), t); err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Int64("tariff_id", id).Msg("tariff update failed")
		writeError(w, r, http.StatusInternalServerError, "failed to update tariff")
		return
	}
	writeOK(w, r, http.StatusOK, toTariffResponses([]*model.Tariff{t})[0])
}

func (s *Server) handleTariffDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	s.writeDeleteResult(w, r, s.uc.Tariff.Delete(r.Context(), id), "tariff")
}

func (s *Server) handlePromosList(w http.ResponseWriter, r *http.Request) {
	ps, err := s.uc.Promo.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list promo codes")
		return
	}
	writeOK(w, r, http.StatusOK, ps)
}

func (s *Server) handlePromoCreate(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	p, err := s.uc.Promo.Create(r.Context(), req.Code, req.BonusDays, req.DiscountPercent, req.MaxUses, req.ExpireDate)
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, "promo code needs exactly one of bonus_days or discount_percent")
		return
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "promo code already exists")
		return
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("promo create failed")
		writeError(w, r, http.StatusInternalServerError, "failed to create promo code")
		return
	}
	writeOK(w, r, http.StatusCreated, p)
}

func (s *Server) handlePromoDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	s.writeDeleteResult(w, r, s.uc.Promo.Delete(r.Context(), id), "promo code")
}

func (s *Server) handleChannelsList(w http.ResponseWriter, r *http.Request) {
	cs, err := s.uc.Trial.ListChannels(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list channels")
		return
	}
	writeOK(w, r, http.StatusOK, cs)
}

func (s *Server) handleChannelAdd(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	c := &model.Channel{ID: req.ID, Title: req.Title, InviteLink: req.InviteLink}
	err := s.uc.Trial.AddChannel(r.Context(), c)
	if errors.Is(err, domain.ErrAlreadyExists) {
		writeError(w, r, http.StatusConflict, "channel already required")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to add channel")
		return
	}
	writeOK(w, r, http.StatusCreated, c)
}

func (s *Server) handleChannelRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	s.writeDeleteResult(w, r, s.uc.Trial.RemoveChannel(r.Context(), id), "channel")
}

func (s *Server) handleUsersList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	us, err := s.uc.User.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list users")
		return
	}
	out := make([]userResponse, 0, len(us))
	for _, u := range us {
		out = append(out, toUserResponse(u))
	}
	writeOK(w, r, http.StatusOK, out)
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	u, err := s.uc.User.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeOK(w, r, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	s.writeDeleteResult(w, r, s.uc.User.Delete(r.Context(), id), "user")
}

// handleUserGrant extends the entitlement. A panel failure after the commit
// still answers 202 since the sweeper retries provisioning.
func (s *Server) handleUserGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req grantRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	u, res, err := s.uc.Provisioning.Grant(r.Context(), id, req.Days, "admin")
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	case u != nil && err != nil:
		logging.With(r.Context(), s.log).Warn().Err(err).Int64("user_id", id).Msg("grant committed, panel pending")
		writeOK(w, r, http.StatusAccepted, map[string]any{
			"user":    toUserResponse(u),
			"warning": "entitlement extended, panel provisioning pending",
		})
		return
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Int64("user_id", id).Msg("grant failed")
		writeError(w, r, http.StatusInternalServerError, "grant failed")
		return
	}
	resp := map[string]any{"user": toUserResponse(u)}
	if res != nil && res.Account != nil {
		resp["subscription_url"] = res.Account.SubscriptionURL
	}
	writeOK(w, r, http.StatusOK, resp)
}

func (s *Server) writeDeleteResult(w http.ResponseWriter, r *http.Request, err error, what string) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, what+" not found")
		return
	}
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("delete " + what + " failed")
		writeError(w, r, http.StatusInternalServerError, "failed to delete "+what)
		return
	}
	writeOK(w, r, http.StatusOK, nil)
}
