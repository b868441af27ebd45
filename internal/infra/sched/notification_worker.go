package sched

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/usecase"

	"github.com/rs/zerolog"
)

// NotificationWorker runs one reminder pass at start and one per interval.
// A pass is cut off when it outlives the interval so passes never pile up.
type NotificationWorker struct {
	interval time.Duration
	reminder usecase.NotificationUseCase
	failures int
	log      *zerolog.Logger
}

func NewNotificationWorker(interval time.Duration, reminder usecase.NotificationUseCase, logger *zerolog.Logger) *NotificationWorker {
	l := logger.With().Str("component", "NotificationWorker").Logger()
	return &NotificationWorker{interval: interval, reminder: reminder, log: &l}
}

func (w *NotificationWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("reminder worker started")
	w.pass(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("reminder worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.pass(ctx)
		}
	}
}

func (w *NotificationWorker) pass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	start := time.Now()
	sent, err := w.reminder.SendExpiryReminders(passCtx)
	if err != nil {
		w.failures++
		ev := w.log.Warn()
		if w.failures >= 3 {
			ev = w.log.Error()
		}
		ev.Err(err).Int("consecutive_failures", w.failures).Int("sent", sent).Msg("reminder pass failed")
		return
	}
	w.failures = 0
	if sent > 0 {
		w.log.Info().Int("sent", sent).Dur("took", time.Since(start)).Msg("expiry reminders sent")
	}
}
