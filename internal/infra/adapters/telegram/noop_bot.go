package telegram

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.TelegramBotAdapter for local/dev runs.
// It logs messages instead of sending them and treats every user as a channel member.
type NoopBotAdapter struct {
	log       *zerolog.Logger
	nextTopic atomic.Int64
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	compLog := logger.With().Str("component", "NoopTelegramBot").Logger()
	return &NoopBotAdapter{log: &compLog}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, p adapter.SendMessageParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", p.ChatID).Int64("thread_id", p.ThreadID).
		Int("button_rows", len(p.Buttons)).Str("text", p.Text).Msg("send message")
	return nil
}

func (b *NoopBotAdapter) IsChannelMember(ctx context.Context, channelID, userID int64) (bool, error) {
	return true, ctx.Err()
}

func (b *NoopBotAdapter) CreateForumTopic(ctx context.Context, chatID int64, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id := b.nextTopic.Add(1)
	b.log.Info().Int64("chat_id", chatID).Int64("topic_id", id).Str("name", name).Msg("create forum topic")
	return id, nil
}

func (b *NoopBotAdapter) CloseForumTopic(ctx context.Context, chatID, topicID int64) error {
	b.log.Info().Int64("chat_id", chatID).Int64("topic_id", topicID).Msg("close forum topic")
	return ctx.Err()
}
