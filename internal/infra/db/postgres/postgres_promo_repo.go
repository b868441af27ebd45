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

var _ repository.PromoRepository = (*PostgresPromoRepo)(nil)

type PostgresPromoRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPromoRepo(pool *pgxpool.Pool) *PostgresPromoRepo {
	return &PostgresPromoRepo{pool: pool}
}

const promoColumns = `id, code, bonus_days, discount_percent, max_uses, uses_left, expire_date, created_at`

func scanPromo(row pgx.Row) (*model.PromoCode, error) {
	var p model.PromoCode
	if err := row.Scan(&p.ID, &p.Code, &p.BonusDays, &p.DiscountPercent, &p.MaxUses, &p.UsesLeft, &p.ExpireDate, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresPromoRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	if p.ID == 0 {
		const ins = `
INSERT INTO promo_codes (code, bonus_days, discount_percent, max_uses, uses_left, expire_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, ins, p.Code, p.BonusDays, p.DiscountPercent, p.MaxUses, p.UsesLeft, p.ExpireDate, p.CreatedAt)
		if err != nil {
			return err
		}
		if err := row.Scan(&p.ID); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			return fmt.Errorf("insert promo: %w", err)
		}
		return nil
	}

	const upd = `
UPDATE promo_codes
   SET code=$2, bonus_days=$3, discount_percent=$4, max_uses=$5, uses_left=$6, expire_date=$7
 WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, upd, p.ID, p.Code, p.BonusDays, p.DiscountPercent, p.MaxUses, p.UsesLeft, p.ExpireDate)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("update promo: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresPromoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+promoColumns+` FROM promo_codes WHERE code=$1;`, model.CanonicalPromoCode(code))
	if err != nil {
		return nil, err
	}
	p, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPromoNotFound
		}
		return nil, fmt.Errorf("find promo: %w", err)
	}
	return p, nil
}

func (r *PostgresPromoRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.PromoCode, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC;`)
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	defer rows.Close()
	var out []*model.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresPromoRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	ct, err := execSQL(ctx, r.pool, tx, `DELETE FROM promo_codes WHERE id=$1;`, id)
	if err != nil {
		return fmt.Errorf("delete promo: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresPromoRepo) DecrementUses(ctx context.Context, tx repository.Tx, id int64) error {
	ct, err := execSQL(ctx, r.pool, tx,
		`UPDATE promo_codes SET uses_left = uses_left - 1 WHERE id=$1 AND uses_left > 0;`, id)
	if err != nil {
		return fmt.Errorf("decrement promo: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrPromoExhausted
	}
	return nil
}

func (r *PostgresPromoRepo) HasRedeemed(ctx context.Context, tx repository.Tx, userID, promoID int64) (bool, error) {
	const q = `
SELECT EXISTS(
    SELECT 1 FROM promo_redemptions WHERE user_id=$1 AND promo_code_id=$2
)`
	row, err := pickRow(ctx, r.pool, tx, q, userID, promoID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *PostgresPromoRepo) InsertRedemption(ctx context.Context, tx repository.Tx, rd *model.PromoRedemption) error {
	// The (user_id, promo_code_id) primary key is the final guard against double redemption.
	_, err := execSQL(ctx, r.pool, tx,
		`INSERT INTO promo_redemptions (user_id, promo_code_id, redeemed_at) VALUES ($1, $2, $3);`,
		rd.UserID, rd.PromoCodeID, rd.RedeemedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPromoAlreadyRedeemed
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}
