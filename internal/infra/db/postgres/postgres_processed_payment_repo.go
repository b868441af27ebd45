package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/repository"
)

var _ repository.ProcessedPaymentRepository = (*PostgresProcessedPaymentRepo)(nil)

type PostgresProcessedPaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresProcessedPaymentRepo(pool *pgxpool.Pool) *PostgresProcessedPaymentRepo {
	return &PostgresProcessedPaymentRepo{pool: pool}
}

func (r *PostgresProcessedPaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.ProcessedPayment) error {
	const q = `
INSERT INTO processed_payments (payment_id, user_id, tariff_id, amount, source, processed_at)
VALUES ($1, $2, $3, $4, $5, $6);`
	_, err := execSQL(ctx, r.pool, tx, q, p.PaymentID, p.UserID, p.TariffID, p.Amount, string(p.Source), p.ProcessedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPaymentAlreadyProcessed
		}
		return fmt.Errorf("insert processed payment: %w", err)
	}
	return nil
}

func (r *PostgresProcessedPaymentRepo) Exists(ctx context.Context, tx repository.Tx, paymentID string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS(SELECT 1 FROM processed_payments WHERE payment_id=$1)`, paymentID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *PostgresProcessedPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.ProcessedPayment, error) {
	const q = `
SELECT payment_id, user_id, tariff_id, amount, source, processed_at
  FROM processed_payments
 WHERE user_id=$1
 ORDER BY processed_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	var out []*model.ProcessedPayment
	for rows.Next() {
		var (
			p      model.ProcessedPayment
			source string
		)
		if err := rows.Scan(&p.PaymentID, &p.UserID, &p.TariffID, &p.Amount, &source, &p.ProcessedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.Source = model.Origin(source)
		out = append(out, &p)
	}
	return out, rows.Err()
}
