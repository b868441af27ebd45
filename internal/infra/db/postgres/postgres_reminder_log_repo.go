package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/repository"
)

var _ repository.ReminderLogRepository = (*reminderLogRepo)(nil)

type reminderLogRepo struct {
	pool *pgxpool.Pool
}

func NewReminderLogRepo(pool *pgxpool.Pool) repository.ReminderLogRepository {
	return &reminderLogRepo{pool: pool}
}

func (r *reminderLogRepo) Save(ctx context.Context, tx repository.Tx, userID int64, kind model.ReminderKind, expiresAt time.Time) error {
	// UNIQUE (user_id, kind, expires_at) absorbs concurrent duplicates.
	const q = `
INSERT INTO reminder_log (user_id, kind, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, kind, expires_at) DO NOTHING`
	_, err := execSQL(ctx, r.pool, tx, q, userID, string(kind), expiresAt.UTC())
	return err
}

func (r *reminderLogRepo) Exists(ctx context.Context, tx repository.Tx, userID int64, kind model.ReminderKind, expiresAt time.Time) (bool, error) {
	const q = `
SELECT EXISTS(
    SELECT 1 FROM reminder_log
    WHERE user_id = $1 AND kind = $2 AND expires_at = $3
)`
	row, err := pickRow(ctx, r.pool, tx, q, userID, string(kind), expiresAt.UTC())
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}
