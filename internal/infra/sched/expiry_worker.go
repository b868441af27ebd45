package sched

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/infra/metrics"
	"vpn-subscription-bot/internal/usecase"

	"github.com/rs/zerolog"
)

// ExpiryWorker keeps the active subscription gauge current. Expiry itself needs no job:
// an entitlement is active while subscription_end is in the future.
type ExpiryWorker struct {
	interval time.Duration
	statsUC  usecase.StatsUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, statsUC usecase.StatsUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		statsUC:  statsUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *ExpiryWorker) refresh(ctx context.Context) {
	n, err := w.statsUC.ActiveSubscriptions(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("active subscription count failed")
		return
	}
	metrics.SetActiveSubscriptions(n)
}
