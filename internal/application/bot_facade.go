package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/i18n"
)

// Callback data understood by the bot adapter.
const (
	CbMenu         = "menu"
	CbTariffs      = "tariffs"
	CbProfile      = "profile"
	CbPromo        = "promo"
	CbTrial        = "trial"
	CbSupport      = "support"
	CbSupportClose = "support:close"
	CbBuyPrefix    = "buy:"
	CbBroadcastPfx = "bc:"
)

const dateLayout = "2006-01-02 15:04"

// Reply is what the adapter sends back to the chat. An empty Text means no answer.
type Reply struct {
	Text    string
	Buttons [][]adapter.InlineButton
}

// Sender identifies the Telegram user behind an update.
type Sender struct {
	ID       int64
	FullName string
	Username string
}

type FacadeOptions struct {
	AdminIDs    []int64
	BotUsername string
	Currency    string
}

// BotFacade composes usecases into high-level bot interactions and keeps the
// per-chat conversation state in the session store.
type BotFacade struct {
	UserUC      UserUseCaseIface
	TariffUC    TariffUseCaseIface
	PayUC       PaymentUseCaseIface
	PromoUC     PromoUseCaseIface
	TrialUC     TrialUseCaseIface
	SupportUC   SupportUseCaseIface
	StatsUC     StatsUseCaseIface
	BroadcastUC BroadcastUseCaseIface

	sessions repository.SessionRepository
	t        *i18n.Translator
	admins   map[int64]struct{}
	opts     FacadeOptions
	now      func() time.Time
}

func NewBotFacade(
	userUC UserUseCaseIface,
	tariffUC TariffUseCaseIface,
	payUC PaymentUseCaseIface,
	promoUC PromoUseCaseIface,
	trialUC TrialUseCaseIface,
	supportUC SupportUseCaseIface,
	statsUC StatsUseCaseIface,
	broadcastUC BroadcastUseCaseIface,
	sessions repository.SessionRepository,
	translator *i18n.Translator,
	opts FacadeOptions,
) *BotFacade {
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	if opts.Currency == "" {
		opts.Currency = "RUB"
	}
	return &BotFacade{
		UserUC:      userUC,
		TariffUC:    tariffUC,
		PayUC:       payUC,
		PromoUC:     promoUC,
		TrialUC:     trialUC,
		SupportUC:   supportUC,
		StatsUC:     statsUC,
		BroadcastUC: broadcastUC,
		sessions:    sessions,
		t:           translator,
		admins:      admins,
		opts:        opts,
		now:         time.Now,
	}
}

func (b *BotFacade) IsAdmin(id int64) bool {
	_, ok := b.admins[id]
	return ok
}

func (b *BotFacade) T(key string, args ...interface{}) string { return b.t.T(key, args...) }

// ParseReferralPayload extracts the referrer from a "/start ref_<id>" deep link.
func ParseReferralPayload(payload string) *int64 {
	raw, ok := strings.CutPrefix(strings.TrimSpace(payload), "ref_")
	if !ok {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func (b *BotFacade) ReferralLink(userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=ref_%d", b.opts.BotUsername, userID)
}

// MainMenu lists the user actions.
func (b *BotFacade) MainMenu(text string) Reply {
	if text == "" {
		text = b.t.T("menu_prompt")
	}
	return Reply{
		Text: text,
		Buttons: [][]adapter.InlineButton{
			{{Text: b.t.T("menu_tariffs"), Data: CbTariffs}},
			{{Text: b.t.T("menu_profile"), Data: CbProfile}, {Text: b.t.T("menu_promo"), Data: CbPromo}},
			{{Text: b.t.T("menu_trial"), Data: CbTrial}, {Text: b.t.T("menu_support"), Data: CbSupport}},
		},
	}
}

// HandleStart registers the sender on first contact and shows the menu.
func (b *BotFacade) HandleStart(ctx context.Context, s Sender, payload string) (Reply, error) {
	u, created, err := b.UserUC.RegisterOrFetch(ctx, s.ID, s.FullName, s.Username, ParseReferralPayload(payload))
	if err != nil {
		return Reply{}, fmt.Errorf("register/fetch user: %w", err)
	}
	name := s.FullName
	if name == "" {
		name = u.FullName
	}
	text := b.t.T("welcome_back", name)
	if created {
		text = b.t.T("welcome", name)
	}
	return b.MainMenu(text), nil
}

// HandleTariffs returns the active tariffs, cheapest first, as buy buttons.
func (b *BotFacade) HandleTariffs(ctx context.Context) (Reply, error) {
	tariffs, err := b.TariffUC.ListActive(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("list tariffs: %w", err)
	}
	if len(tariffs) == 0 {
		return b.MainMenu(b.t.T("tariffs_empty")), nil
	}
	rows := make([][]adapter.InlineButton, 0, len(tariffs)+1)
	for _, t := range tariffs {
		label := b.t.T("tariff_button", t.Name, t.DurationDays, model.FormatAmount(t.Price), b.opts.Currency)
		rows = append(rows, []adapter.InlineButton{{Text: label, Data: CbBuyPrefix + strconv.FormatInt(t.ID, 10)}})
	}
	rows = append(rows, []adapter.InlineButton{{Text: "◀️", Data: CbMenu}})
	return Reply{Text: b.t.T("tariffs_title"), Buttons: rows}, nil
}

// HandleBuy creates a payment and returns the confirmation link.
func (b *BotFacade) HandleBuy(ctx context.Context, userID int64, rawTariffID string) (Reply, error) {
	tariffID, err := strconv.ParseInt(strings.TrimSpace(rawTariffID), 10, 64)
	if err != nil {
		return Reply{Text: b.t.T("payment_failed")}, nil
	}
	co, err := b.PayUC.Initiate(ctx, userID, tariffID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrTariffInactive) {
			return Reply{Text: b.t.T("payment_failed")}, nil
		}
		return Reply{}, fmt.Errorf("initiate payment: %w", err)
	}
	text := b.t.T("payment_link", model.FormatAmount(co.Amount), b.opts.Currency, co.Tariff.Name)
	if co.DiscountPercent > 0 {
		text = b.t.T("payment_discount_applied", co.DiscountPercent) + "\n" + text
	}
	return Reply{
		Text:    text,
		Buttons: [][]adapter.InlineButton{{{Text: b.t.T("payment_button"), URL: co.Intent.ConfirmationURL}}},
	}, nil
}

// HandleProfile shows subscription state, the panel link and the referral link.
func (b *BotFacade) HandleProfile(ctx context.Context, userID int64) (Reply, error) {
	p, err := b.UserUC.Profile(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("profile: %w", err)
	}
	var sb strings.Builder
	if p.User.SubscriptionEnd != nil && p.Active {
		sb.WriteString(b.t.T("profile", p.User.SubscriptionEnd.Format(dateLayout), p.Referrals, p.User.ReferralBonusDays))
	} else {
		sb.WriteString(b.t.T("profile_no_subscription"))
	}
	if p.Account != nil && p.Account.SubscriptionURL != "" {
		sb.WriteString("\n\n" + b.t.T("profile_link", p.Account.SubscriptionURL))
	}
	if b.opts.BotUsername != "" {
		sb.WriteString("\n\n" + b.t.T("referral_link", b.ReferralLink(userID)))
	}
	return b.MainMenu(sb.String()), nil
}

// HandlePromoPrompt waits for the next message to be a promo code.
func (b *BotFacade) HandlePromoPrompt(ctx context.Context, userID int64) (Reply, error) {
	if err := b.sessions.Set(ctx, userID, model.PromoEntry{Step: model.PromoStepAwaitingCode}); err != nil {
		return Reply{}, err
	}
	return Reply{Text: b.t.T("promo_enter")}, nil
}

// HandleTrial claims the trial or lists the channels still to join.
func (b *BotFacade) HandleTrial(ctx context.Context, userID int64) (Reply, error) {
	u, err := b.TrialUC.Claim(ctx, userID)
	switch {
	case err == nil:
		return b.MainMenu(b.t.T("trial_granted", u.SubscriptionEnd.Format(dateLayout))), nil
	case errors.Is(err, domain.ErrTrialAlreadyUsed):
		return b.MainMenu(b.t.T("trial_already_used")), nil
	case errors.Is(err, domain.ErrChannelsNotSubscribed):
		missing, err := b.TrialUC.MissingChannels(ctx, userID)
		if err != nil {
			return Reply{}, err
		}
		rows := make([][]adapter.InlineButton, 0, len(missing)+1)
		for _, c := range missing {
			rows = append(rows, []adapter.InlineButton{{Text: c.Title, URL: c.InviteLink}})
		}
		rows = append(rows, []adapter.InlineButton{{Text: b.t.T("trial_check_button"), Data: CbTrial}})
		return Reply{Text: b.t.T("trial_join_channels"), Buttons: rows}, nil
	default:
		return Reply{}, fmt.Errorf("claim trial: %w", err)
	}
}

func (b *BotFacade) HandleSupportOpen(ctx context.Context, userID int64) (Reply, error) {
	if _, err := b.SupportUC.Open(ctx, userID); err != nil {
		return Reply{}, fmt.Errorf("open support: %w", err)
	}
	return Reply{
		Text:    b.t.T("support_opened"),
		Buttons: [][]adapter.InlineButton{{{Text: b.t.T("support_close_button"), Data: CbSupportClose}}},
	}, nil
}

func (b *BotFacade) HandleSupportClose(ctx context.Context, userID int64) (Reply, error) {
	err := b.SupportUC.Close(ctx, userID)
	if errors.Is(err, domain.ErrNoSupportTicket) {
		return b.MainMenu(b.t.T("support_no_ticket")), nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("close support: %w", err)
	}
	return b.MainMenu(b.t.T("support_closed")), nil
}

// HandleTopicMessage relays an admin message written inside a support topic.
func (b *BotFacade) HandleTopicMessage(ctx context.Context, topicID int64, text string) error {
	err := b.SupportUC.RelayFromAdmin(ctx, topicID, text)
	if errors.Is(err, domain.ErrNoSupportTicket) {
		return nil
	}
	return err
}

// HandleText routes a free-text message according to the sender's session.
func (b *BotFacade) HandleText(ctx context.Context, s Sender, text string) (Reply, error) {
	sess, err := b.sessions.Get(ctx, s.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Reply{}, err
	}

	switch st := sess.(type) {
	case model.PromoEntry:
		if err := b.sessions.Clear(ctx, s.ID); err != nil {
			return Reply{}, err
		}
		return b.redeem(ctx, s.ID, text)
	case model.SupportChat:
		err := b.SupportUC.RelayFromUser(ctx, s.ID, text)
		if errors.Is(err, domain.ErrNoSupportTicket) {
			return b.MainMenu(b.t.T("support_no_ticket")), nil
		}
		return Reply{}, err
	case model.Broadcast:
		if st.Step == model.BroadcastAwaitingText && b.IsAdmin(s.ID) {
			return b.sendBroadcast(ctx, s.ID, st.Audience, text)
		}
	}
	return b.MainMenu(b.t.T("unknown_command")), nil
}

func (b *BotFacade) redeem(ctx context.Context, userID int64, code string) (Reply, error) {
	res, err := b.PromoUC.Redeem(ctx, userID, code)
	if err != nil {
		if key, ok := promoErrorKey(err); ok {
			return b.MainMenu(b.t.T(key)), nil
		}
		return Reply{}, fmt.Errorf("redeem promo: %w", err)
	}
	if res.Effect == model.PromoEffectDiscount {
		return b.MainMenu(b.t.T("promo_discount_saved", res.DiscountPercent)), nil
	}
	return b.MainMenu(b.t.T("promo_bonus_applied", res.BonusDays, res.SubscriptionEnd.Format(dateLayout))), nil
}

func promoErrorKey(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrPromoNotFound):
		return "promo_not_found", true
	case errors.Is(err, domain.ErrPromoExhausted):
		return "promo_exhausted", true
	case errors.Is(err, domain.ErrPromoExpired):
		return "promo_expired", true
	case errors.Is(err, domain.ErrPromoAlreadyRedeemed):
		return "promo_already_used", true
	}
	return "", false
}

// ---- admin ----

func (b *BotFacade) HandleStats(ctx context.Context, userID int64) (Reply, error) {
	if !b.IsAdmin(userID) {
		return Reply{Text: b.t.T("admin_only")}, nil
	}
	st, err := b.StatsUC.Overview(ctx, b.now().Add(-model.Day))
	if err != nil {
		return Reply{}, fmt.Errorf("stats: %w", err)
	}
	return Reply{Text: b.t.T("admin_stats", st.TotalUsers, st.NewUsers, st.ActiveSubscriptions,
		st.WithFirstPayment, st.WithoutFirstPayment, st.TotalReferrals)}, nil
}

func (b *BotFacade) HandleBroadcastStart(ctx context.Context, userID int64) (Reply, error) {
	if !b.IsAdmin(userID) {
		return Reply{Text: b.t.T("admin_only")}, nil
	}
	if err := b.sessions.Set(ctx, userID, model.Broadcast{Step: model.BroadcastChooseAudience}); err != nil {
		return Reply{}, err
	}
	return Reply{
		Text: b.t.T("admin_broadcast_audience"),
		Buttons: [][]adapter.InlineButton{
			{{Text: b.t.T("admin_broadcast_all"), Data: CbBroadcastPfx + string(model.AudienceAll)}},
			{{Text: b.t.T("admin_broadcast_unpaid"), Data: CbBroadcastPfx + string(model.AudienceUnpaid)}},
		},
	}, nil
}

func (b *BotFacade) HandleBroadcastAudience(ctx context.Context, userID int64, audience string) (Reply, error) {
	if !b.IsAdmin(userID) {
		return Reply{Text: b.t.T("admin_only")}, nil
	}
	aud := model.BroadcastAudience(audience)
	if aud != model.AudienceAll && aud != model.AudienceUnpaid {
		return Reply{Text: b.t.T("unknown_command")}, nil
	}
	if err := b.sessions.Set(ctx, userID, model.Broadcast{Step: model.BroadcastAwaitingText, Audience: aud}); err != nil {
		return Reply{}, err
	}
	return Reply{Text: b.t.T("admin_broadcast_text")}, nil
}

func (b *BotFacade) sendBroadcast(ctx context.Context, adminID int64, aud model.BroadcastAudience, text string) (Reply, error) {
	if err := b.sessions.Clear(ctx, adminID); err != nil {
		return Reply{}, err
	}
	runID, n, err := b.BroadcastUC.Broadcast(ctx, aud, text)
	if err != nil {
		return Reply{}, fmt.Errorf("broadcast: %w", err)
	}
	return Reply{Text: b.t.T("admin_broadcast_queued", runID, n)}, nil
}
