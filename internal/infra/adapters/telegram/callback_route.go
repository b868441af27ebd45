package telegram

import (
	"context"

	"vpn-subscription-bot/internal/application"
)

type cbHandler func(ctx context.Context, chatID int64, s application.Sender, data string) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

// Exact-match callbacks
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		application.CbMenu:         r.menuCBRoute,
		application.CbTariffs:      r.tariffsCBRoute,
		application.CbProfile:      r.profileCBRoute,
		application.CbPromo:        r.promoCBRoute,
		application.CbTrial:        r.trialCBRoute,
		application.CbSupport:      r.supportCBRoute,
		application.CbSupportClose: r.supportCloseCBRoute,
	}
}

// Prefix-match callbacks. Handlers receive the data with the prefix removed.
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: application.CbBuyPrefix, Fn: r.buyPrefixCBRoute},
		{Prefix: application.CbBroadcastPfx, Fn: r.broadcastPrefixCBRoute},
	}
}

func (r *RealTelegramBotAdapter) menuCBRoute(ctx context.Context, id int64, _ application.Sender, _ string) error {
	return r.reply(ctx, id, r.facade.MainMenu(""), nil)
}

func (r *RealTelegramBotAdapter) tariffsCBRoute(ctx context.Context, id int64, _ application.Sender, _ string) error {
	rep, err := r.facade.HandleTariffs(ctx)
	return r.reply(ctx, id, rep, err)
}

func (r *RealTelegramBotAdapter) profileCBRoute(ctx context.Context, id int64, s application.Sender, _ string) error {
	rep, err := r.facade.HandleProfile(ctx, s.ID)
	return r.reply(ctx, id, rep, err)
}

func (r *RealTelegramBotAdapter) promoCBRoute(ctx context.Context, id int64, s application.Sender, _ string) error {
	rep, err := r.facade.HandlePromoPrompt(ctx, s.ID)
	return r.reply(ctx, id, rep, err)
}

func (r *RealTelegramBotAdapter) trialCBRoute(ctx context.Context, id int64, s application.Sender, _ string) error {
	rep, err := r.facade.HandleTrial(ctx, s.ID)
	return r.reply(ctx, id, rep, err)
}

func (r *RealTelegramBotAdapter) supportCBRoute(ctx context.Context, id int64, s application.Sender, _ string) error {
	rep, err := r.facade.HandleSupportOpen(ctx, s.ID)
	return r.reply(ctx, id, rep, err)
}

func (r *RealTelegramBotAdapter) supportCloseCBRoute(ctx context.Context, id int64, s application.Sender, _ string) error {
	rep, err := r.facade.HandleSupportClose(ctx, s.ID)
	return r.reply(ctx, id, rep, err)
}

func (r *RealTelegramBotAdapter) buyPrefixCBRoute(ctx context.Context, id int64, s application.Sender, tariffID string) error {
	rep, err := r.facade.HandleBuy(ctx, s.ID, tariffID)
	return r.reply(ctx, id, rep, err)
}

func (r *RealTelegramBotAdapter) broadcastPrefixCBRoute(ctx context.Context, id int64, s application.Sender, audience string) error {
	rep, err := r.facade.HandleBroadcastAudience(ctx, s.ID, audience)
	return r.reply(ctx, id, rep, err)
}
