package repository

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/domain/model"
)

// -----------------------------
// Reminder log
// -----------------------------

type ReminderLogRepository interface {
	// Save records that a reminder was sent for one expiry date.
	Save(ctx context.Context, tx Tx, userID int64, kind model.ReminderKind, expiresAt time.Time) error
	// Exists checks whether the same reminder went out already.
	Exists(ctx context.Context, tx Tx, userID int64, kind model.ReminderKind, expiresAt time.Time) (bool, error)
}
