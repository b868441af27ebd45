package usecase

import (
	"context"

	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02 15:04"

// notifyUser sends a best-effort chat message. Web users have no chat and are skipped.
// Failures are logged and never returned.
func notifyUser(ctx context.Context, bot adapter.TelegramBotAdapter, log *zerolog.Logger, kind string, userID int64, text string) bool {
	if model.OriginOf(userID) != model.OriginBot {
		return false
	}
	if err := bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: userID, Text: text}); err != nil {
		metrics.IncNotification(kind, "failed")
		log.Warn().Err(err).Int64("user_id", userID).Str("kind", kind).Msg("notification not delivered")
		return false
	}
	metrics.IncNotification(kind, "sent")
	return true
}
