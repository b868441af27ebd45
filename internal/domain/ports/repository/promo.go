package repository

import (
	"context"

	"vpn-subscription-bot/internal/domain/model"
)

type PromoRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PromoCode) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.PromoCode, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.PromoCode, error)
	Delete(ctx context.Context, tx Tx, id int64) error

	// DecrementUses never lets uses_left go below zero; domain.ErrPromoExhausted when nothing was left.
	DecrementUses(ctx context.Context, tx Tx, id int64) error
	HasRedeemed(ctx context.Context, tx Tx, userID, promoID int64) (bool, error)
	// InsertRedemption maps the (user_id, promo_code_id) unique violation to domain.ErrPromoAlreadyRedeemed.
	InsertRedemption(ctx context.Context, tx Tx, r *model.PromoRedemption) error
}
