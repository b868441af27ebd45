package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ PromoUseCase = (*promoUC)(nil)

// RedeemResult reports the effect of a redeemed promo code.
type RedeemResult struct {
	Effect          model.PromoEffect
	BonusDays       int
	DiscountPercent int
	SubscriptionEnd *time.Time
	// Provisioned is false when the bonus days were stored but the panel call failed.
	Provisioned bool
}

type PromoUseCase interface {
	// Redeem checks, in order: code exists, uses left, not expired, not yet redeemed by the user.
	Redeem(ctx context.Context, userID int64, code string) (*RedeemResult, error)
	Create(ctx context.Context, code string, bonusDays, discountPercent, maxUses int, expire *time.Time) (*model.PromoCode, error)
	List(ctx context.Context) ([]*model.PromoCode, error)
	Delete(ctx context.Context, id int64) error
}

type promoUC struct {
	promos   repository.PromoRepository
	sessions repository.SessionRepository
	prov     ProvisioningUseCase
	tm       repository.TransactionManager
	now      func() time.Time
	log      *zerolog.Logger
}

func NewPromoUseCase(
	promos repository.PromoRepository,
	sessions repository.SessionRepository,
	prov ProvisioningUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *promoUC {
	return &promoUC{
		promos:   promos,
		sessions: sessions,
		prov:     prov,
		tm:       tm,
		now:      time.Now,
		log:      logger,
	}
}

func (p *promoUC) Redeem(ctx context.Context, userID int64, code string) (*RedeemResult, error) {
	defer logging.TraceDuration(p.log, "PromoUC.Redeem")()

	code = model.CanonicalPromoCode(code)
	if code == "" {
		return nil, domain.ErrPromoNotFound
	}

	var (
		promo *model.PromoCode
		user  *model.User
	)
	err := p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		pc, err := p.promos.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if err := pc.CheckRedeemable(p.now()); err != nil {
			return err
		}
		used, err := p.promos.HasRedeemed(ctx, tx, userID, pc.ID)
		if err != nil {
			return err
		}
		if used {
			return domain.ErrPromoAlreadyRedeemed
		}

		// Concurrent redemptions by the same user serialize on the unique key;
		// the loser rolls back and its decrement with it.
		if err := p.promos.DecrementUses(ctx, tx, pc.ID); err != nil {
			return err
		}
		if err := p.promos.InsertRedemption(ctx, tx, &model.PromoRedemption{
			UserID:      userID,
			PromoCodeID: pc.ID,
			RedeemedAt:  p.now(),
		}); err != nil {
			return err
		}

		if pc.Effect() == model.PromoEffectBonusDays {
			u, err := p.prov.ExtendEntitlement(ctx, tx, userID, pc.BonusDays, "promo")
			if err != nil {
				return err
			}
			user = u
		}
		promo = pc
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := p.log.With().Int64("user_id", userID).Str("promo", promo.Code).Logger()
	res := &RedeemResult{Effect: promo.Effect()}

	switch promo.Effect() {
	case model.PromoEffectBonusDays:
		res.BonusDays = promo.BonusDays
		res.SubscriptionEnd = user.SubscriptionEnd
		if _, err := p.prov.ProvisionPanel(ctx, user, promo.BonusDays); err != nil {
			log.Error().Err(err).Int("bonus_days", promo.BonusDays).Msg("promo days stored but panel provisioning failed")
		} else {
			res.Provisioned = true
		}
	case model.PromoEffectDiscount:
		res.DiscountPercent = promo.DiscountPercent
		sel := model.TariffSelection{DiscountPercent: promo.DiscountPercent, PromoCode: promo.Code}
		if err := p.sessions.Set(ctx, userID, sel); err != nil {
			// the redemption is already committed
			log.Error().Err(err).Msg("failed to store promo discount in session")
			return res, fmt.Errorf("store discount: %w", err)
		}
	}
	log.Info().Str("effect", string(res.Effect)).Msg("promo code redeemed")
	return res, nil
}

func (p *promoUC) Create(ctx context.Context, code string, bonusDays, discountPercent, maxUses int, expire *time.Time) (*model.PromoCode, error) {
	defer logging.TraceDuration(p.log, "PromoUC.Create")()

	pc, err := model.NewPromoCode(code, bonusDays, discountPercent, maxUses, expire)
	if err != nil {
		return nil, err
	}
	if err := p.promos.Save(ctx, repository.NoTX, pc); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("promo %s: %w", pc.Code, err)
		}
		return nil, err
	}
	p.log.Info().Str("promo", pc.Code).Str("effect", string(pc.Effect())).Int("max_uses", pc.MaxUses).Msg("promo code created")
	return pc, nil
}

func (p *promoUC) List(ctx context.Context) ([]*model.PromoCode, error) {
	return p.promos.ListAll(ctx, repository.NoTX)
}

func (p *promoUC) Delete(ctx context.Context, id int64) error {
	return p.promos.Delete(ctx, repository.NoTX, id)
}
