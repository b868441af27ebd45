package usecase

import (
	"context"
	"errors"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/i18n"
	"vpn-subscription-bot/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ ReferralUseCase = (*referralUC)(nil)

type ReferralGrantKind string

const (
	ReferralGrantNone     ReferralGrantKind = "none"
	ReferralGrantPanel    ReferralGrantKind = "panel"
	ReferralGrantAdvisory ReferralGrantKind = "advisory"
)

type ReferralUseCase interface {
	// Grant credits the referrer of a first-time payer with the configured bonus days.
	Grant(ctx context.Context, referrerID int64, referee *model.User) (ReferralGrantKind, error)
	Referrals(ctx context.Context, userID int64) ([]*model.User, error)
	CountReferrals(ctx context.Context, userID int64) (int, error)
}

type referralUC struct {
	users     repository.UserRepository
	panel     adapter.PanelClient
	prov      ProvisioningUseCase
	bot       adapter.TelegramBotAdapter
	tm        repository.TransactionManager
	t         *i18n.Translator
	bonusDays int
	log       *zerolog.Logger
}

func NewReferralUseCase(
	users repository.UserRepository,
	panel adapter.PanelClient,
	prov ProvisioningUseCase,
	bot adapter.TelegramBotAdapter,
	tm repository.TransactionManager,
	translator *i18n.Translator,
	bonusDays int,
	logger *zerolog.Logger,
) *referralUC {
	return &referralUC{
		users:     users,
		panel:     panel,
		prov:      prov,
		bot:       bot,
		tm:        tm,
		t:         translator,
		bonusDays: bonusDays,
		log:       logger,
	}
}

// Grant extends a referrer that already has a panel account on the panel first and
// then in the store. Any panel failure, or no account at all, credits the advisory counter instead.
func (r *referralUC) Grant(ctx context.Context, referrerID int64, referee *model.User) (ReferralGrantKind, error) {
	defer logging.TraceDuration(r.log, "ReferralUC.Grant")()

	log := r.log.With().Int64("referrer_id", referrerID).Int64("referee_id", referee.ID).Logger()

	referrer, err := r.users.FindByID(ctx, repository.NoTX, referrerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("referrer no longer exists, bonus skipped")
			return ReferralGrantNone, nil
		}
		return ReferralGrantNone, err
	}

	kind := ReferralGrantAdvisory
	if referrer.HasPanelAccount() {
		if _, err := r.panel.ExtendAccount(ctx, referrer.PanelUsername, r.bonusDays); err != nil {
			log.Warn().Err(err).Str("panel_username", referrer.PanelUsername).Msg("panel extend for referral failed, crediting advisory days")
		} else {
			kind = ReferralGrantPanel
		}
	}

	err = r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if kind == ReferralGrantPanel {
			_, err := r.prov.ExtendEntitlement(ctx, tx, referrerID, r.bonusDays, "referral")
			return err
		}
		return r.users.AddReferralBonusDays(ctx, tx, referrerID, r.bonusDays)
	})
	if err != nil {
		if kind == ReferralGrantPanel {
			logging.Critical(&log).Err(err).Int("bonus_days", r.bonusDays).Msg("referral days added on panel but not recorded locally")
		}
		return ReferralGrantNone, err
	}
	log.Info().Str("kind", string(kind)).Int("bonus_days", r.bonusDays).Msg("referral bonus granted")

	msg := r.t.T("referral_bonus_saved", r.bonusDays)
	if kind == ReferralGrantPanel {
		msg = r.t.T("referral_bonus_applied", r.bonusDays)
	}
	notifyUser(ctx, r.bot, &log, "referral_bonus", referrerID, msg)
	return kind, nil
}

func (r *referralUC) Referrals(ctx context.Context, userID int64) ([]*model.User, error) {
	return r.users.ListReferralsOf(ctx, repository.NoTX, userID)
}

func (r *referralUC) CountReferrals(ctx context.Context, userID int64) (int, error) {
	return r.users.CountReferralsOf(ctx, repository.NoTX, userID)
}
