package sched

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/usecase"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// ProvisioningSweeper finds users that hold an active entitlement but no panel account
// (paid, not yet provisioned) and provisions them. A failed pass is retried with
// exponential backoff before waiting for the next tick.
type ProvisioningSweeper struct {
	uc         usecase.ProvisioningUseCase
	interval   time.Duration
	batch      int
	maxRetries uint64
	// initialBackoff is the first retry delay within one pass.
	initialBackoff time.Duration
	log            *zerolog.Logger
}

func NewProvisioningSweeper(uc usecase.ProvisioningUseCase, interval time.Duration, batch int, logger *zerolog.Logger) *ProvisioningSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	compLog := logger.With().Str("component", "ProvisioningSweeper").Logger()
	return &ProvisioningSweeper{uc: uc, interval: interval, batch: batch, maxRetries: 3, initialBackoff: 2 * time.Second, log: &compLog}
}

func (w *ProvisioningSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("Starting provisioning sweeper")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping provisioning sweeper")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *ProvisioningSweeper) tick(ctx context.Context) {
	var fixed int
	op := func() error {
		n, err := w.uc.SyncUnprovisioned(ctx, w.batch)
		fixed += n
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initialBackoff
	b.MaxElapsedTime = w.interval / 2
	policy := backoff.WithContext(backoff.WithMaxRetries(b, w.maxRetries), ctx)

	notify := func(err error, next time.Duration) {
		w.log.Warn().Err(err).Dur("retry_in", next).Msg("sweep pass failed")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		w.log.Error().Err(err).Msg("sweep gave up until the next tick")
	}
	if fixed > 0 {
		w.log.Info().Int("count", fixed).Msg("unprovisioned users repaired")
	}
}
