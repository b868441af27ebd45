package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/logging"
	"vpn-subscription-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// Checkout is a created payment intent plus the price actually charged.
type Checkout struct {
	Intent          *model.PaymentIntent
	Tariff          *model.Tariff
	Amount          int64
	DiscountPercent int
}

type PaymentUseCase interface {
	// Initiate creates a gateway payment for the tariff. A pending promo discount from the
	// user's session is applied and consumed.
	Initiate(ctx context.Context, userID, tariffID int64) (*Checkout, error)
	History(ctx context.Context, userID int64) ([]*model.ProcessedPayment, error)
}

type PaymentOptions struct {
	Currency  string
	ReturnURL string
}

type paymentUC struct {
	gateway   adapter.PaymentGateway
	users     repository.UserRepository
	tariffs   repository.TariffRepository
	processed repository.ProcessedPaymentRepository
	sessions  repository.SessionRepository
	opts      PaymentOptions
	log       *zerolog.Logger
}

func NewPaymentUseCase(
	gateway adapter.PaymentGateway,
	users repository.UserRepository,
	tariffs repository.TariffRepository,
	processed repository.ProcessedPaymentRepository,
	sessions repository.SessionRepository,
	opts PaymentOptions,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		gateway:   gateway,
		users:     users,
		tariffs:   tariffs,
		processed: processed,
		sessions:  sessions,
		opts:      opts,
		log:       logger,
	}
}

func (p *paymentUC) Initiate(ctx context.Context, userID, tariffID int64) (*Checkout, error) {
	defer logging.TraceDuration(p.log, "PaymentUC.Initiate")()

	tariff, err := p.tariffs.FindByID(ctx, repository.NoTX, tariffID)
	if err != nil {
		return nil, err
	}
	if !tariff.IsActive {
		return nil, domain.ErrTariffInactive
	}
	user, err := p.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	discount := 0
	var promoCode string
	if s, err := p.sessions.Get(ctx, userID); err == nil {
		if sel, ok := s.(model.TariffSelection); ok {
			discount = sel.DiscountPercent
			promoCode = sel.PromoCode
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		p.log.Warn().Err(err).Int64("user_id", userID).Msg("session unavailable, charging full price")
	}

	amount := tariff.PriceWithDiscount(discount)
	meta := map[string]string{
		model.MetaUserID:   strconv.FormatInt(user.ID, 10),
		model.MetaTariffID: strconv.FormatInt(tariff.ID, 10),
		model.MetaSource:   string(user.Origin()),
	}
	if promoCode != "" {
		meta["promo_code"] = promoCode
	}

	intent, err := p.gateway.CreatePayment(ctx, adapter.CreatePaymentRequest{
		Amount:      amount,
		Currency:    p.opts.Currency,
		Description: fmt.Sprintf("VPN subscription %q, %d days", tariff.Name, tariff.DurationDays),
		ReturnURL:   p.opts.ReturnURL,
		UserID:      user.ID,
		Metadata:    meta,
	})
	if err != nil {
		metrics.IncPayment("create_failed")
		p.log.Error().Err(err).Int64("user_id", userID).Int64("tariff_id", tariffID).Msg("payment creation failed")
		return nil, err
	}
	metrics.IncPayment("created")

	if discount > 0 {
		if err := p.sessions.Clear(ctx, userID); err != nil {
			p.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to clear consumed discount")
		}
	}
	p.log.Info().
		Int64("user_id", userID).
		Int64("tariff_id", tariffID).
		Str("payment_id", intent.PaymentID).
		Int64("amount", amount).
		Int("discount", discount).
		Msg("payment created")

	return &Checkout{Intent: intent, Tariff: tariff, Amount: amount, DiscountPercent: discount}, nil
}

func (p *paymentUC) History(ctx context.Context, userID int64) ([]*model.ProcessedPayment, error) {
	return p.processed.ListByUser(ctx, repository.NoTX, userID)
}
