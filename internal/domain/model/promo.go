package model

import (
	"strings"
	"time"

	"vpn-subscription-bot/internal/domain"
)

type PromoEffect string

const (
	PromoEffectBonusDays PromoEffect = "bonus_days"
	PromoEffectDiscount  PromoEffect = "discount"
)

// PromoCode grants either bonus days or a discount on the next purchase.
// Invariant: 0 <= UsesLeft <= MaxUses.
type PromoCode struct {
	ID              int64
	Code            string
	BonusDays       int
	DiscountPercent int
	MaxUses         int
	UsesLeft        int
	ExpireDate      *time.Time
	CreatedAt       time.Time
}

// PromoRedemption is one row of the usage ledger, unique per (UserID, PromoCodeID).
type PromoRedemption struct {
	UserID      int64
	PromoCodeID int64
	RedeemedAt  time.Time
}

// CanonicalPromoCode normalizes user input to the stored form.
func CanonicalPromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func NewPromoCode(code string, bonusDays, discountPercent, maxUses int, expire *time.Time) (*PromoCode, error) {
	code = CanonicalPromoCode(code)
	if code == "" || maxUses <= 0 || bonusDays < 0 || discountPercent < 0 || discountPercent > 99 {
		return nil, domain.ErrInvalidArgument
	}
	if (bonusDays > 0) == (discountPercent > 0) {
		return nil, domain.ErrInvalidArgument
	}
	return &PromoCode{
		Code:            code,
		BonusDays:       bonusDays,
		DiscountPercent: discountPercent,
		MaxUses:         maxUses,
		UsesLeft:        maxUses,
		ExpireDate:      expire,
		CreatedAt:       time.Now(),
	}, nil
}

func (p *PromoCode) Effect() PromoEffect {
	if p.BonusDays > 0 {
		return PromoEffectBonusDays
	}
	return PromoEffectDiscount
}

// CheckRedeemable runs the code-level checks in order: uses left, then expiry.
// The per-user check lives in the ledger.
func (p *PromoCode) CheckRedeemable(now time.Time) error {
	if p.UsesLeft <= 0 {
		return domain.ErrPromoExhausted
	}
	if p.ExpireDate != nil && !p.ExpireDate.After(now) {
		return domain.ErrPromoExpired
	}
	return nil
}
