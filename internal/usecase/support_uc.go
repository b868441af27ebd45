package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/i18n"
	"vpn-subscription-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ SupportUseCase = (*supportUC)(nil)

// SupportUseCase bridges user chats and forum topics in the support group.
type SupportUseCase interface {
	// Open reuses the user's topic or creates one, then starts a support chat session.
	Open(ctx context.Context, userID int64) (int64, error)
	// RelayFromUser copies a message into the user's topic. An idle session ends with domain.ErrNoSupportTicket.
	RelayFromUser(ctx context.Context, userID int64, text string) error
	// RelayFromAdmin delivers a reply written in a topic to the topic's owner.
	RelayFromAdmin(ctx context.Context, topicID int64, text string) error
	Close(ctx context.Context, userID int64) error
}

type supportUC struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	bot      adapter.TelegramBotAdapter
	t        *i18n.Translator
	chatID   int64
	timeout  time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

func NewSupportUseCase(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	bot adapter.TelegramBotAdapter,
	translator *i18n.Translator,
	supportChatID int64,
	timeout time.Duration,
	logger *zerolog.Logger,
) *supportUC {
	return &supportUC{
		users:    users,
		sessions: sessions,
		bot:      bot,
		t:        translator,
		chatID:   supportChatID,
		timeout:  timeout,
		now:      time.Now,
		log:      logger,
	}
}

func (s *supportUC) Open(ctx context.Context, userID int64) (int64, error) {
	defer logging.TraceDuration(s.log, "SupportUC.Open")()

	u, err := s.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return 0, err
	}
	var topicID int64
	if u.SupportTopicID != nil {
		topicID = *u.SupportTopicID
	} else {
		name := s.t.T("support_topic_title", u.ID, displayName(u))
		topicID, err = s.bot.CreateForumTopic(ctx, s.chatID, name)
		if err != nil {
			return 0, fmt.Errorf("create support topic: %w", err)
		}
		if err := s.users.SetSupportTopic(ctx, repository.NoTX, userID, &topicID); err != nil {
			return 0, err
		}
		s.log.Info().Int64("user_id", userID).Int64("topic_id", topicID).Msg("support topic opened")
	}
	if err := s.sessions.Set(ctx, userID, model.SupportChat{TopicID: topicID, LastActivity: s.now()}); err != nil {
		return 0, err
	}
	return topicID, nil
}

func (s *supportUC) RelayFromUser(ctx context.Context, userID int64, text string) error {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNoSupportTicket
		}
		return err
	}
	chat, ok := sess.(model.SupportChat)
	if !ok {
		return domain.ErrNoSupportTicket
	}
	now := s.now()
	if chat.Expired(now, s.timeout) {
		if err := s.sessions.Clear(ctx, userID); err != nil {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to clear idle support session")
		}
		return domain.ErrNoSupportTicket
	}

	u, err := s.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return err
	}
	if err := s.bot.SendMessage(ctx, adapter.SendMessageParams{
		ChatID:   s.chatID,
		ThreadID: chat.TopicID,
		Text:     s.t.T("support_user_header", displayName(u), u.ID, text),
	}); err != nil {
		return err
	}
	chat.LastActivity = now
	return s.sessions.Set(ctx, userID, chat)
}

func (s *supportUC) RelayFromAdmin(ctx context.Context, topicID int64, text string) error {
	u, err := s.users.FindBySupportTopic(ctx, repository.NoTX, topicID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNoSupportTicket
		}
		return err
	}
	return s.bot.SendMessage(ctx, adapter.SendMessageParams{
		ChatID: u.ID,
		Text:   s.t.T("support_reply", text),
	})
}

func (s *supportUC) Close(ctx context.Context, userID int64) error {
	defer logging.TraceDuration(s.log, "SupportUC.Close")()

	u, err := s.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return err
	}
	if u.SupportTopicID == nil {
		return domain.ErrNoSupportTicket
	}
	if err := s.bot.CloseForumTopic(ctx, s.chatID, *u.SupportTopicID); err != nil {
		s.log.Warn().Err(err).Int64("topic_id", *u.SupportTopicID).Msg("closing forum topic failed")
	}
	if err := s.users.SetSupportTopic(ctx, repository.NoTX, userID, nil); err != nil {
		return err
	}
	if err := s.sessions.Clear(ctx, userID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to clear support session")
	}
	s.log.Info().Int64("user_id", userID).Msg("support ticket closed")
	return nil
}

func displayName(u *model.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FullName
}
