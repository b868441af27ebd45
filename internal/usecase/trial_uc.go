package usecase

import (
	"context"
	"errors"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ TrialUseCase = (*trialUC)(nil)

type TrialUseCase interface {
	// MissingChannels lists the required channels the user has not joined yet.
	MissingChannels(ctx context.Context, userID int64) ([]*model.Channel, error)
	// Claim grants the trial once per user. Chat users must pass the channel gate first;
	// web users have no chat identity to check and skip it.
	Claim(ctx context.Context, userID int64) (*model.User, error)

	AddChannel(ctx context.Context, c *model.Channel) error
	RemoveChannel(ctx context.Context, id int64) error
	ListChannels(ctx context.Context) ([]*model.Channel, error)
}

type trialUC struct {
	users     repository.UserRepository
	channels  repository.ChannelRepository
	prov      ProvisioningUseCase
	bot       adapter.TelegramBotAdapter
	tm        repository.TransactionManager
	trialDays int
	log       *zerolog.Logger
}

func NewTrialUseCase(
	users repository.UserRepository,
	channels repository.ChannelRepository,
	prov ProvisioningUseCase,
	bot adapter.TelegramBotAdapter,
	tm repository.TransactionManager,
	trialDays int,
	logger *zerolog.Logger,
) *trialUC {
	return &trialUC{
		users:     users,
		channels:  channels,
		prov:      prov,
		bot:       bot,
		tm:        tm,
		trialDays: trialDays,
		log:       logger,
	}
}

func (t *trialUC) MissingChannels(ctx context.Context, userID int64) ([]*model.Channel, error) {
	all, err := t.channels.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	var missing []*model.Channel
	for _, c := range all {
		ok, err := t.bot.IsChannelMember(ctx, c.ID, userID)
		if err != nil {
			// an unreadable membership counts as not joined
			t.log.Warn().Err(err).Int64("channel_id", c.ID).Int64("user_id", userID).Msg("channel membership check failed")
			ok = false
		}
		if !ok {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

func (t *trialUC) Claim(ctx context.Context, userID int64) (*model.User, error) {
	defer logging.TraceDuration(t.log, "TrialUC.Claim")()

	if model.OriginOf(userID) == model.OriginBot {
		missing, err := t.MissingChannels(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			return nil, domain.ErrChannelsNotSubscribed
		}
	}

	var user *model.User
	err := t.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := t.users.MarkTrialReceived(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrTrialAlreadyUsed
		}
		u, err := t.prov.ExtendEntitlement(ctx, tx, userID, t.trialDays, "trial")
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrTrialAlreadyUsed) {
			t.log.Error().Err(err).Int64("user_id", userID).Msg("trial grant failed")
		}
		return nil, err
	}

	if _, err := t.prov.ProvisionPanel(ctx, user, t.trialDays); err != nil {
		t.log.Error().Err(err).Int64("user_id", userID).Int("trial_days", t.trialDays).
			Msg("trial stored but panel provisioning failed")
	}
	t.log.Info().Int64("user_id", userID).Int("trial_days", t.trialDays).Msg("trial granted")
	return user, nil
}

func (t *trialUC) AddChannel(ctx context.Context, c *model.Channel) error {
	if c == nil || c.ID == 0 {
		return domain.ErrInvalidArgument
	}
	return t.channels.Save(ctx, repository.NoTX, c)
}

func (t *trialUC) RemoveChannel(ctx context.Context, id int64) error {
	return t.channels.Delete(ctx, repository.NoTX, id)
}

func (t *trialUC) ListChannels(ctx context.Context) ([]*model.Channel, error) {
	return t.channels.ListAll(ctx, repository.NoTX)
}
