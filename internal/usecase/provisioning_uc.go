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
	"vpn-subscription-bot/internal/infra/logging"
	"vpn-subscription-bot/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ ProvisioningUseCase = (*provisioningUC)(nil)

// ProvisionResult describes what happened on the panel side.
type ProvisionResult struct {
	Username string
	Created  bool
	Account  *model.PanelAccount
}

// ProvisioningUseCase keeps the local entitlement and the panel account in step.
// The local extension always commits before the panel is touched.
type ProvisioningUseCase interface {
	// ExtendEntitlement moves subscription_end to max(now, end) + days inside tx
	// and returns the updated user. The row is locked for the rest of tx.
	ExtendEntitlement(ctx context.Context, tx repository.Tx, userID int64, days int, reason string) (*model.User, error)
	// ProvisionPanel runs fetch, then extend or create, for days on the user's panel account.
	// A new account expires together with the local entitlement when one is set.
	// The derived account name is persisted only after the panel call succeeded.
	ProvisionPanel(ctx context.Context, user *model.User, days int) (*ProvisionResult, error)
	// Grant is ExtendEntitlement in its own transaction followed by ProvisionPanel.
	// A panel failure returns the committed user together with an error wrapping domain.ErrProvisioningFailed.
	Grant(ctx context.Context, userID int64, days int, reason string) (*model.User, *ProvisionResult, error)
	// SyncUnprovisioned creates panel accounts for users that hold an active entitlement but no account.
	SyncUnprovisioned(ctx context.Context, limit int) (int, error)
}

type provisioningUC struct {
	users repository.UserRepository
	panel adapter.PanelClient
	tm    repository.TransactionManager
	now   func() time.Time
	log   *zerolog.Logger
}

func NewProvisioningUseCase(users repository.UserRepository, panel adapter.PanelClient, tm repository.TransactionManager, logger *zerolog.Logger) *provisioningUC {
	return &provisioningUC{
		users: users,
		panel: panel,
		tm:    tm,
		now:   time.Now,
		log:   logger,
	}
}

func (p *provisioningUC) ExtendEntitlement(ctx context.Context, tx repository.Tx, userID int64, days int, reason string) (*model.User, error) {
	if days <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	user, err := p.users.FindByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	until := model.ExtendExpiry(user.SubscriptionEnd, p.now(), days)
	if err := p.users.SetSubscriptionEnd(ctx, tx, userID, until); err != nil {
		return nil, err
	}
	user.SubscriptionEnd = &until
	metrics.IncEntitlementExtension(reason)
	return user, nil
}

func (p *provisioningUC) ProvisionPanel(ctx context.Context, user *model.User, days int) (*ProvisionResult, error) {
	defer logging.TraceDuration(p.log, "ProvisioningUC.ProvisionPanel")()

	name := user.PanelUsername
	if name == "" {
		name = model.PanelUsernameFor(user.ID)
	}
	res := &ProvisionResult{Username: name}

	acc, err := p.panel.FetchAccount(ctx, name)
	switch {
	case err == nil:
		acc, err = p.panel.ExtendAccount(ctx, name, days)
	case errors.Is(err, domain.ErrPanelNotFound):
		if user.SubscriptionEnd != nil && user.SubscriptionEnd.After(p.now()) {
			acc, err = p.panel.CreateAccountUntil(ctx, name, *user.SubscriptionEnd)
		} else {
			acc, err = p.panel.CreateAccount(ctx, name, days)
		}
		if errors.Is(err, domain.ErrPanelConflict) {
			// created concurrently between fetch and create
			p.log.Warn().Str("panel_username", name).Msg("panel account appeared during create, extending instead")
			acc, err = p.panel.ExtendAccount(ctx, name, days)
		} else if err == nil {
			res.Created = true
		}
	}
	if err != nil {
		metrics.IncProvisioning("failed")
		return res, fmt.Errorf("%w: %s: %w", domain.ErrProvisioningFailed, name, err)
	}
	res.Account = acc
	if res.Created {
		metrics.IncProvisioning("created")
	} else {
		metrics.IncProvisioning("extended")
	}

	if user.PanelUsername == "" {
		if err := p.users.SetPanelUsername(ctx, repository.NoTX, user.ID, name); err != nil {
			// The account exists; the sweeper re-attaches the name on its next pass.
			p.log.Error().Err(err).Int64("user_id", user.ID).Str("panel_username", name).Msg("failed to persist panel username")
		} else {
			user.PanelUsername = name
		}
	}

	if user.ReferralBonusDays > 0 && user.PanelUsername != "" {
		if err := p.applyAdvisoryBonus(ctx, user); err != nil {
			p.log.Error().Err(err).Int64("user_id", user.ID).Int("bonus_days", user.ReferralBonusDays).Msg("failed to apply advisory bonus")
		}
	}
	return res, nil
}

// applyAdvisoryBonus moves the advisory counter onto the live account and the store.
func (p *provisioningUC) applyAdvisoryBonus(ctx context.Context, user *model.User) error {
	days := user.ReferralBonusDays
	if _, err := p.panel.ExtendAccount(ctx, user.PanelUsername, days); err != nil {
		return err
	}
	err := p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		u, err := p.ExtendEntitlement(ctx, tx, user.ID, days, "referral_advisory")
		if err != nil {
			return err
		}
		user.SubscriptionEnd = u.SubscriptionEnd
		// Only the applied days are taken; referrals credited meanwhile stay on the counter.
		return p.users.ConsumeReferralBonusDays(ctx, tx, user.ID, days)
	})
	if err != nil {
		logging.Critical(p.log).Err(err).Int64("user_id", user.ID).Int("bonus_days", days).
			Msg("advisory bonus applied on panel but not recorded locally")
		return err
	}
	user.ReferralBonusDays -= days
	p.log.Info().Int64("user_id", user.ID).Int("bonus_days", days).Msg("advisory bonus applied")
	return nil
}

func (p *provisioningUC) Grant(ctx context.Context, userID int64, days int, reason string) (*model.User, *ProvisionResult, error) {
	defer logging.TraceDuration(p.log, "ProvisioningUC.Grant")()

	var user *model.User
	err := p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		u, err := p.ExtendEntitlement(ctx, tx, userID, days, reason)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	res, err := p.ProvisionPanel(ctx, user, days)
	if err != nil {
		p.log.Error().Err(err).
			Int64("user_id", userID).
			Str("panel_username", res.Username).
			Int("days", days).
			Str("reason", reason).
			Msg("entitlement extended but panel provisioning failed")
		return user, res, err
	}
	return user, res, nil
}

func (p *provisioningUC) SyncUnprovisioned(ctx context.Context, limit int) (int, error) {
	defer logging.TraceDuration(p.log, "ProvisioningUC.SyncUnprovisioned")()

	now := p.now()
	users, err := p.users.ListUnprovisioned(ctx, repository.NoTX, now, limit)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, u := range users {
		if ctx.Err() != nil {
			return fixed, ctx.Err()
		}
		if err := p.syncOne(ctx, u); err != nil {
			p.log.Warn().Err(err).Int64("user_id", u.ID).Msg("sync of unprovisioned user failed")
			continue
		}
		fixed++
	}
	return fixed, nil
}

// syncOne attaches or creates the panel account so that it expires together with the local entitlement.
func (p *provisioningUC) syncOne(ctx context.Context, u *model.User) error {
	name := model.PanelUsernameFor(u.ID)
	_, err := p.panel.FetchAccount(ctx, name)
	switch {
	case err == nil:
		p.log.Info().Int64("user_id", u.ID).Str("panel_username", name).Msg("re-attaching existing panel account")
	case errors.Is(err, domain.ErrPanelNotFound):
		if _, err := p.panel.CreateAccountUntil(ctx, name, *u.SubscriptionEnd); err != nil && !errors.Is(err, domain.ErrPanelConflict) {
			metrics.IncProvisioning("failed")
			return err
		}
		metrics.IncProvisioning("created")
	default:
		return err
	}
	if err := p.users.SetPanelUsername(ctx, repository.NoTX, u.ID, name); err != nil {
		return err
	}
	u.PanelUsername = name
	if u.ReferralBonusDays > 0 {
		if err := p.applyAdvisoryBonus(ctx, u); err != nil {
			p.log.Error().Err(err).Int64("user_id", u.ID).Int("bonus_days", u.ReferralBonusDays).Msg("failed to apply advisory bonus")
		}
	}
	return nil
}
