package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":   r.handleStartCommand,
		"tariffs": r.handleTariffsCommand,
		"profile": r.handleProfileCommand,
		"promo":   r.handlePromoCommand,
		"trial":   r.handleTrialCommand,
		"support": r.handleSupportCommand,
		"close":   r.handleCloseCommand,
		"help":    r.handleHelpCommand,

		// Wrapped in the adminOnly middleware.
		"stats":     r.adminOnly(r.handleStatsCommand),
		"broadcast": r.adminOnly(r.handleBroadcastCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !r.facade.IsAdmin(message.From.ID) {
			metrics.IncAdminCommand("/"+message.Command(), "unauthorized")
			return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: message.Chat.ID, Text: r.facade.T("admin_only")})
		}
		metrics.IncAdminCommand("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

// handleStartCommand registers the user; "/start ref_<id>" carries the referrer.
func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	isAdmin := r.facade.IsAdmin(message.From.ID)
	if err := r.setMenuCommands(message.Chat.ID, isAdmin); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", message.From.ID).Msg("failed to set menu commands")
	}
	rep, err := r.facade.HandleStart(ctx, senderOf(message.From), message.CommandArguments())
	return r.reply(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleTariffsCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleTariffs(ctx)
	return r.reply(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleProfileCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleProfile(ctx, message.From.ID)
	return r.reply(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handlePromoCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandlePromoPrompt(ctx, message.From.ID)
	return r.reply(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleTrialCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleTrial(ctx, message.From.ID)
	return r.reply(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleSupportCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleSupportOpen(ctx, message.From.ID)
	return r.reply(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleCloseCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleSupportClose(ctx, message.From.ID)
	return r.reply(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: message.Chat.ID, Text: r.facade.T("help")})
}

func (r *RealTelegramBotAdapter) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleStats(ctx, message.From.ID)
	return r.reply(ctx, message.Chat.ID, rep, err)
}

func (r *RealTelegramBotAdapter) handleBroadcastCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := r.facade.HandleBroadcastStart(ctx, message.From.ID)
	return r.reply(ctx, message.Chat.ID, rep, err)
}

// setMenuCommands scopes the command list to the chat so admins see their extra commands.
func (r *RealTelegramBotAdapter) setMenuCommands(chatID int64, isAdmin bool) error {
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Main menu"},
		{Command: "tariffs", Description: "Buy VPN access"},
		{Command: "profile", Description: "My subscription"},
		{Command: "promo", Description: "Enter a promo code"},
		{Command: "trial", Description: "Free trial"},
		{Command: "support", Description: "Contact support"},
		{Command: "close", Description: "Close the support ticket"},
		{Command: "help", Description: "Help"},
	}
	if isAdmin {
		commands = append(commands,
			tgbotapi.BotCommand{Command: "stats", Description: "Statistics"},
			tgbotapi.BotCommand{Command: "broadcast", Description: "Send a broadcast"},
		)
	}
	cfg := tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(chatID), commands...)
	_, err := r.bot.Request(cfg)
	return err
}
