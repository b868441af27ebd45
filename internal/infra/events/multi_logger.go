package events

import (
	"context"
	"errors"

	"vpn-subscription-bot/internal/domain/ports/adapter"
)

var _ adapter.TransactionLogger = MultiLogger(nil)

// MultiLogger fans an entry out to every sink. All sinks are tried; their errors are joined.
type MultiLogger []adapter.TransactionLogger

func (m MultiLogger) LogTransaction(ctx context.Context, e adapter.TransactionLogEntry) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.LogTransaction(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
