package usecase

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/metrics"
	"vpn-subscription-bot/internal/infra/worker"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ BroadcastUseCase = (*broadcastUC)(nil)

type BroadcastUseCase interface {
	// Broadcast queues message for every chat user of the audience and returns the run id
	// and the number of recipients. Delivery continues in the background.
	Broadcast(ctx context.Context, audience model.BroadcastAudience, message string) (string, int, error)
}

type broadcastUC struct {
	users      repository.UserRepository
	bot        adapter.TelegramBotAdapter
	workerPool *worker.Pool
	rate       time.Duration
	log        *zerolog.Logger
}

func NewBroadcastUseCase(
	users repository.UserRepository,
	bot adapter.TelegramBotAdapter,
	pool *worker.Pool,
	logger *zerolog.Logger,
) BroadcastUseCase {
	return &broadcastUC{
		users:      users,
		bot:        bot,
		workerPool: pool,
		// Telegram allows about 30 messages per second
		rate: time.Second / 25,
		log:  logger,
	}
}

func (uc *broadcastUC) Broadcast(ctx context.Context, audience model.BroadcastAudience, message string) (string, int, error) {
	if message == "" {
		return "", 0, domain.ErrInvalidArgument
	}

	var (
		all []*model.User
		err error
	)
	switch audience {
	case model.AudienceAll:
		all, err = uc.users.List(ctx, repository.NoTX, 0, 0)
	case model.AudienceUnpaid:
		all, err = uc.users.ListWithoutFirstPayment(ctx, repository.NoTX)
	default:
		return "", 0, domain.ErrInvalidArgument
	}
	if err != nil {
		uc.log.Error().Err(err).Str("audience", string(audience)).Msg("Failed to fetch users for broadcast")
		return "", 0, err
	}

	var recipients []int64
	for _, u := range all {
		if u.Origin() == model.OriginBot {
			recipients = append(recipients, u.ID)
		}
	}

	runID := ulid.Make().String()
	log := uc.log.With().Str("run_id", runID).Str("audience", string(audience)).Logger()
	throttle := time.NewTicker(uc.rate)

	// detached from the request; the pool's own context bounds it
	bg := context.WithoutCancel(ctx)
	go func() {
		defer throttle.Stop()
		log.Info().Int("user_count", len(recipients)).Msg("Starting broadcast job")

		for _, id := range recipients {
			<-throttle.C
			if err := uc.workerPool.SubmitWait(bg, uc.createSendTask(audience, id, message)); err != nil {
				metrics.IncBroadcastMessage(string(audience), "dropped")
				log.Warn().Err(err).Int64("user_id", id).Msg("Broadcast stopped, worker pool unavailable")
				return
			}
		}
		log.Info().Msg("Broadcast job finished queuing all tasks")
	}()

	return runID, len(recipients), nil
}

// createSendTask creates a closure for the worker pool to execute.
func (uc *broadcastUC) createSendTask(audience model.BroadcastAudience, chatID int64, message string) worker.Task {
	return func(ctx context.Context) error {
		err := uc.bot.SendMessage(ctx, adapter.SendMessageParams{
			ChatID: chatID,
			Text:   message,
		})
		if err != nil {
			// most often the user blocked the bot
			metrics.IncBroadcastMessage(string(audience), "failed")
			uc.log.Debug().Err(err).Int64("user_id", chatID).Msg("Failed to send broadcast message to user")
			return nil
		}
		metrics.IncBroadcastMessage(string(audience), "sent")
		return nil
	}
}
