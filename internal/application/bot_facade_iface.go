package application

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// These describe the minimal surface that the facade needs, so tests can pass light-weight mocks.

type UserUseCaseIface interface {
	RegisterOrFetch(ctx context.Context, tgID int64, fullName, username string, referrerID *int64) (*model.User, bool, error)
	Profile(ctx context.Context, id int64) (*usecase.Profile, error)
}

type TariffUseCaseIface interface {
	ListActive(ctx context.Context) ([]*model.Tariff, error)
}

type PaymentUseCaseIface interface {
	Initiate(ctx context.Context, userID, tariffID int64) (*usecase.Checkout, error)
}

type PromoUseCaseIface interface {
	Redeem(ctx context.Context, userID int64, code string) (*usecase.RedeemResult, error)
}

type TrialUseCaseIface interface {
	MissingChannels(ctx context.Context, userID int64) ([]*model.Channel, error)
	Claim(ctx context.Context, userID int64) (*model.User, error)
}

type SupportUseCaseIface interface {
	Open(ctx context.Context, userID int64) (int64, error)
	RelayFromUser(ctx context.Context, userID int64, text string) error
	RelayFromAdmin(ctx context.Context, topicID int64, text string) error
	Close(ctx context.Context, userID int64) error
}

type StatsUseCaseIface interface {
	Overview(ctx context.Context, since time.Time) (*model.Stats, error)
}

type BroadcastUseCaseIface interface {
	Broadcast(ctx context.Context, audience model.BroadcastAudience, message string) (string, int, error)
}
