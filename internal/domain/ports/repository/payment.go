package repository

import (
	"context"

	"vpn-subscription-bot/internal/domain/model"
)

// -----------------------------
// Processed payments (webhook dedup)
// -----------------------------

type ProcessedPaymentRepository interface {
	// Insert maps a duplicate payment id to domain.ErrPaymentAlreadyProcessed.
	Insert(ctx context.Context, tx Tx, p *model.ProcessedPayment) error
	Exists(ctx context.Context, tx Tx, paymentID string) (bool, error)
	ListByUser(ctx context.Context, tx Tx, userID int64) ([]*model.ProcessedPayment, error)
}
