package telegram

import (
	"context"
	"strings"

	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/infra/i18n"
)

var _ adapter.TransactionLogger = (*AdminChatLogger)(nil)

// AdminChatLogger posts every applied payment into the admin chat.
type AdminChatLogger struct {
	bot      adapter.TelegramBotAdapter
	t        *i18n.Translator
	chatID   int64
	currency string
}

func NewAdminChatLogger(bot adapter.TelegramBotAdapter, t *i18n.Translator, chatID int64, currency string) *AdminChatLogger {
	return &AdminChatLogger{bot: bot, t: t, chatID: chatID, currency: currency}
}

func (l *AdminChatLogger) LogTransaction(ctx context.Context, e adapter.TransactionLogEntry) error {
	if l.chatID == 0 {
		return nil
	}
	return l.bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: l.chatID, Text: l.format(e)})
}

func (l *AdminChatLogger) format(e adapter.TransactionLogEntry) string {
	kind := l.t.T("admin_transaction_new")
	if e.IsRenewal {
		kind = l.t.T("admin_transaction_renewal")
	}
	username := ""
	if e.Username != "" {
		username = "@" + strings.TrimPrefix(e.Username, "@")
	}
	price := model.FormatAmount(e.Price) + " " + l.currency
	return l.t.T("admin_transaction", kind, string(e.Origin), e.UserID, username, e.FullName, e.TariffName, price)
}
