package usecase

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/i18n"
	"vpn-subscription-bot/internal/infra/logging"
	"vpn-subscription-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// SendExpiryReminders notifies users in every configured window. Each
	// (user, window, expiry) pair is notified at most once.
	SendExpiryReminders(ctx context.Context) (int, error)
}

type ReminderOptions struct {
	Days  []int
	Hours int
}

type notificationUC struct {
	users     repository.UserRepository
	reminders repository.ReminderLogRepository
	bot       adapter.TelegramBotAdapter
	t         *i18n.Translator
	opts      ReminderOptions
	now       func() time.Time
	log       *zerolog.Logger
}

func NewNotificationUseCase(
	users repository.UserRepository,
	reminders repository.ReminderLogRepository,
	bot adapter.TelegramBotAdapter,
	translator *i18n.Translator,
	opts ReminderOptions,
	logger *zerolog.Logger,
) *notificationUC {
	return &notificationUC{
		users:     users,
		reminders: reminders,
		bot:       bot,
		t:         translator,
		opts:      opts,
		now:       time.Now,
		log:       logger,
	}
}

func (n *notificationUC) SendExpiryReminders(ctx context.Context) (int, error) {
	defer logging.TraceDuration(n.log, "NotificationUC.SendExpiryReminders")()

	now := n.now()
	sent := 0
	for _, d := range n.opts.Days {
		from := now.Add(time.Duration(d) * model.Day)
		users, err := n.users.ListExpiringBetween(ctx, repository.NoTX, from, from.Add(model.Day))
		if err != nil {
			return sent, err
		}
		days := d
		sent += n.remind(ctx, users, model.DaysReminder(d), func(end time.Time) string {
			return n.t.T("reminder_days", days, end.Format(dateLayout))
		})
	}
	if n.opts.Hours > 0 {
		users, err := n.users.ListExpiringBetween(ctx, repository.NoTX, now, now.Add(time.Duration(n.opts.Hours)*time.Hour))
		if err != nil {
			return sent, err
		}
		sent += n.remind(ctx, users, model.HoursReminder(n.opts.Hours), func(end time.Time) string {
			return n.t.T("reminder_hours", end.Format("15:04"))
		})
	}
	return sent, nil
}

func (n *notificationUC) remind(ctx context.Context, users []*model.User, kind model.ReminderKind, text func(time.Time) string) int {
	sent := 0
	for _, u := range users {
		if u.SubscriptionEnd == nil || u.Origin() != model.OriginBot {
			continue
		}
		end := *u.SubscriptionEnd
		done, err := n.reminders.Exists(ctx, repository.NoTX, u.ID, kind, end)
		if err != nil {
			n.log.Warn().Err(err).Int64("user_id", u.ID).Msg("reminder log lookup failed")
			continue
		}
		if done {
			continue
		}
		if !notifyUser(ctx, n.bot, n.log, "reminder", u.ID, text(end)) {
			continue
		}
		if err := n.reminders.Save(ctx, repository.NoTX, u.ID, kind, end); err != nil {
			n.log.Warn().Err(err).Int64("user_id", u.ID).Str("kind", string(kind)).Msg("reminder sent but not logged")
		}
		metrics.IncReminderSent(string(kind))
		sent++
	}
	return sent
}
