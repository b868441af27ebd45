package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.TariffRepository = (*PostgresTariffRepo)(nil)

type PostgresTariffRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTariffRepo(pool *pgxpool.Pool) *PostgresTariffRepo {
	return &PostgresTariffRepo{pool: pool}
}

func (r *PostgresTariffRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tariff) error {
	if t.ID == 0 {
		const ins = `
INSERT INTO tariffs (name, price, duration_days, is_active, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, ins, t.Name, t.Price, t.DurationDays, t.IsActive, t.CreatedAt)
		if err != nil {
			return err
		}
		if err := row.Scan(&t.ID); err != nil {
			return fmt.Errorf("insert tariff: %w", err)
		}
		return nil
	}

	const upd = `
UPDATE tariffs
   SET name          = $2,
       price         = $3,
       duration_days = $4,
       is_active     = $5
 WHERE id = $1;`
	ct, err := execSQL(ctx, r.pool, tx, upd, t.ID, t.Name, t.Price, t.DurationDays, t.IsActive)
	if err != nil {
		return fmt.Errorf("update tariff: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresTariffRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Tariff, error) {
	const q = `
SELECT id, name, price, duration_days, is_active, created_at
  FROM tariffs
 WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var t model.Tariff
	if err := row.Scan(&t.ID, &t.Name, &t.Price, &t.DurationDays, &t.IsActive, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID tariff: %w", err)
	}
	return &t, nil
}

func (r *PostgresTariffRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	return r.list(ctx, tx, `
SELECT id, name, price, duration_days, is_active, created_at
  FROM tariffs
 WHERE is_active
 ORDER BY price, id;`)
}

func (r *PostgresTariffRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	return r.list(ctx, tx, `
SELECT id, name, price, duration_days, is_active, created_at
  FROM tariffs
 ORDER BY id;`)
}

func (r *PostgresTariffRepo) list(ctx context.Context, tx repository.Tx, q string) ([]*model.Tariff, error) {
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}
	defer rows.Close()
	var out []*model.Tariff
	for rows.Next() {
		var t model.Tariff
		if err := rows.Scan(&t.ID, &t.Name, &t.Price, &t.DurationDays, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Deactivate hides a tariff from sale. Rows stay so old payments still resolve.
func (r *PostgresTariffRepo) Deactivate(ctx context.Context, tx repository.Tx, id int64) error {
	ct, err := execSQL(ctx, r.pool, tx, `UPDATE tariffs SET is_active = FALSE WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("deactivate tariff: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
