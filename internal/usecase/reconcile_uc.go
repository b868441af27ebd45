package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/i18n"
	"vpn-subscription-bot/internal/infra/logging"
	"vpn-subscription-bot/internal/infra/metrics"
	"vpn-subscription-bot/internal/infra/redis"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// Outcome classifies one webhook delivery for the HTTP layer.
type Outcome string

const (
	OutcomeIgnored     Outcome = "ignored"
	OutcomeProcessed   Outcome = "processed"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeUserMissing Outcome = "user_missing"
	OutcomeFailed      Outcome = "failed"
)

// ReconcileUseCase applies successful payments to the entitlement store and the panel.
type ReconcileUseCase interface {
	// HandleWebhook parses a raw gateway body and reconciles it.
	HandleWebhook(ctx context.Context, body []byte) (Outcome, error)
	// HandleNotification reconciles an already parsed notification.
	// OutcomeInvalid comes with an error wrapping domain.ErrInvalidArgument;
	// OutcomeFailed comes with an internal error and means the gateway should retry.
	HandleNotification(ctx context.Context, n *model.PaymentNotification) (Outcome, error)
}

type ReconcileOptions struct {
	// VerifyWithGateway re-reads the payment from the gateway before applying it.
	VerifyWithGateway bool
	// LockTTL bounds how long one payment id stays locked by a single worker.
	LockTTL time.Duration
}

type reconcileUC struct {
	gateway   adapter.PaymentGateway
	users     repository.UserRepository
	tariffs   repository.TariffRepository
	processed repository.ProcessedPaymentRepository
	prov      ProvisioningUseCase
	referral  ReferralUseCase
	txlog     adapter.TransactionLogger
	bot       adapter.TelegramBotAdapter
	locker    redis.Locker
	tm        repository.TransactionManager
	t         *i18n.Translator
	opts      ReconcileOptions
	now       func() time.Time
	log       *zerolog.Logger
}

func NewReconcileUseCase(
	gateway adapter.PaymentGateway,
	users repository.UserRepository,
	tariffs repository.TariffRepository,
	processed repository.ProcessedPaymentRepository,
	prov ProvisioningUseCase,
	referral ReferralUseCase,
	txlog adapter.TransactionLogger,
	bot adapter.TelegramBotAdapter,
	locker redis.Locker,
	tm repository.TransactionManager,
	translator *i18n.Translator,
	opts ReconcileOptions,
	logger *zerolog.Logger,
) *reconcileUC {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	return &reconcileUC{
		gateway:   gateway,
		users:     users,
		tariffs:   tariffs,
		processed: processed,
		prov:      prov,
		referral:  referral,
		txlog:     txlog,
		bot:       bot,
		locker:    locker,
		tm:        tm,
		t:         translator,
		opts:      opts,
		now:       time.Now,
		log:       logger,
	}
}

var errUserMissing = errors.New("payment user missing")

func (r *reconcileUC) HandleWebhook(ctx context.Context, body []byte) (Outcome, error) {
	n, err := r.gateway.ParseWebhook(body)
	if err != nil {
		metrics.IncWebhookNotification("unknown", string(OutcomeInvalid))
		r.log.Warn().Err(err).Msg("rejected malformed webhook body")
		return OutcomeInvalid, err
	}
	return r.HandleNotification(ctx, n)
}

func (r *reconcileUC) HandleNotification(ctx context.Context, n *model.PaymentNotification) (outcome Outcome, err error) {
	defer logging.TraceDuration(r.log, "ReconcileUC.HandleNotification")()

	ctx = logging.WithPaymentID(ctx, n.PaymentID)
	runLog := logging.With(ctx, r.log).With().Str("run_id", ulid.Make().String()).Str("event", n.Event).Logger()
	log := &runLog
	defer func() {
		metrics.IncWebhookNotification(n.Event, string(outcome))
	}()

	if !n.Actionable() {
		log.Info().Msg("webhook event ignored")
		return OutcomeIgnored, nil
	}

	if r.opts.VerifyWithGateway {
		fresh, err := r.gateway.GetPayment(ctx, n.PaymentID)
		if err != nil {
			log.Error().Err(err).Msg("could not verify payment with gateway")
			return OutcomeFailed, fmt.Errorf("verify payment: %w", err)
		}
		if !fresh.Actionable() {
			log.Warn().Str("gateway_status", fresh.Status).Msg("gateway does not confirm the payment, ignoring")
			return OutcomeIgnored, nil
		}
		if len(fresh.Metadata) > 0 {
			n = fresh
		}
	}

	// metadata
	md, err := n.ParseMetadata()
	if err != nil {
		log.Warn().Err(err).Interface("metadata", n.Metadata).Msg("webhook metadata rejected")
		return OutcomeInvalid, err
	}
	ctx = logging.WithUserID(ctx, md.UserID)
	runLog = runLog.With().Int64("user_id", md.UserID).Int64("tariff_id", md.TariffID).Logger()

	// tariff
	tariff, err := r.tariffs.FindByID(ctx, repository.NoTX, md.TariffID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("orphaned payment: tariff does not exist, manual review required")
			return OutcomeInvalid, fmt.Errorf("tariff %d: %w", md.TariffID, domain.ErrInvalidArgument)
		}
		return OutcomeFailed, err
	}

	token, err := r.locker.TryLock(ctx, redis.PaymentLockKey(n.PaymentID), r.opts.LockTTL)
	if err != nil {
		log.Warn().Err(err).Msg("payment lock not acquired")
		return OutcomeFailed, err
	}
	defer func() {
		if uerr := r.locker.Unlock(context.WithoutCancel(ctx), redis.PaymentLockKey(n.PaymentID), token); uerr != nil {
			log.Warn().Err(uerr).Msg("payment lock release failed")
		}
	}()

	var (
		user    *model.User
		isFirst bool
	)
	err = r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := r.processed.Insert(ctx, tx, &model.ProcessedPayment{
			PaymentID:   n.PaymentID,
			UserID:      md.UserID,
			TariffID:    md.TariffID,
			Amount:      n.Amount,
			Source:      md.Source,
			ProcessedAt: r.now(),
		}); err != nil {
			return err
		}

		// The first-payment flag is read before anything is written.
		u, err := r.prov.ExtendEntitlement(ctx, tx, md.UserID, tariff.DurationDays, "payment")
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errUserMissing
			}
			return err
		}
		isFirst = !u.IsFirstPaymentMade
		// first payment flag commits together with the extension
		if isFirst {
			if err := r.users.MarkFirstPaymentMade(ctx, tx, md.UserID); err != nil {
				return err
			}
		}
		user = u
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPaymentAlreadyProcessed):
		log.Info().Msg("duplicate payment notification, already applied")
		return OutcomeDuplicate, nil
	case errors.Is(err, errUserMissing):
		log.Error().Msg("payment for unknown user, acknowledging without changes")
		return OutcomeUserMissing, nil
	default:
		log.Error().Err(err).Msg("entitlement extension failed, gateway will retry")
		return OutcomeFailed, err
	}
	metrics.IncPayment("succeeded")
	metrics.AddPaymentRevenue(n.Currency, n.Amount)
	log.Info().Time("subscription_end", *user.SubscriptionEnd).Bool("first_payment", isFirst).Msg("entitlement extended")

	// panel failures never reach the gateway
	created := false
	res, perr := r.prov.ProvisionPanel(ctx, user, tariff.DurationDays)
	if perr != nil {
		logging.Critical(log).Err(perr).
			Str("panel_username", res.Username).
			Int("duration_days", tariff.DurationDays).
			Msg("payment applied but panel provisioning failed, manual remediation required")
	} else {
		created = res.Created
	}

	// referral bonus on the first payment only
	if isFirst && user.ReferrerID != nil {
		if _, err := r.referral.Grant(ctx, *user.ReferrerID, user); err != nil {
			log.Error().Err(err).Int64("referrer_id", *user.ReferrerID).Msg("referral bonus failed")
		}
	}

	// admin transaction log
	entry := adapter.TransactionLogEntry{
		PaymentID:  n.PaymentID,
		Origin:     md.Source,
		IsRenewal:  !created,
		UserID:     user.ID,
		Username:   user.Username,
		FullName:   user.FullName,
		TariffName: tariff.Name,
		Price:      n.Amount,
		At:         r.now(),
	}
	if err := r.txlog.LogTransaction(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("transaction log entry not delivered")
	}

	// buyer
	notifyUser(ctx, r.bot, log, "payment_success", user.ID,
		r.t.T("payment_success", tariff.Name, user.SubscriptionEnd.Format(dateLayout)))

	return OutcomeProcessed, nil
}
