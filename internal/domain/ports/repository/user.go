package repository

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.User, error)
	// FindByIDForUpdate locks the row until tx ends. With a nil tx it behaves like FindByID.
	FindByIDForUpdate(ctx context.Context, tx Tx, id int64) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
	FindBySupportTopic(ctx context.Context, tx Tx, topicID int64) (*model.User, error)
	Delete(ctx context.Context, tx Tx, id int64) error

	SetSubscriptionEnd(ctx context.Context, tx Tx, id int64, until time.Time) error
	SetPanelUsername(ctx context.Context, tx Tx, id int64, name string) error
	SetPasswordHash(ctx context.Context, tx Tx, id int64, hash string) error
	// SetReferrer only writes when referrer_id is still NULL; it reports whether it did.
	SetReferrer(ctx context.Context, tx Tx, id, referrerID int64) (bool, error)
	AddReferralBonusDays(ctx context.Context, tx Tx, id int64, days int) error
	// ConsumeReferralBonusDays subtracts days from the advisory counter; ErrNotFound when fewer are left.
	ConsumeReferralBonusDays(ctx context.Context, tx Tx, id int64, days int) error
	MarkFirstPaymentMade(ctx context.Context, tx Tx, id int64) error
	// MarkTrialReceived flips has_received_trial false->true and reports whether it did.
	MarkTrialReceived(ctx context.Context, tx Tx, id int64) (bool, error)
	SetSupportTopic(ctx context.Context, tx Tx, id int64, topicID *int64) error

	CountUsers(ctx context.Context, tx Tx) (int, error)
	CountNewUsers(ctx context.Context, tx Tx, since time.Time) (int, error)
	CountActive(ctx context.Context, tx Tx, now time.Time) (int, error)
	CountByFirstPayment(ctx context.Context, tx Tx, made bool) (int, error)
	CountReferrals(ctx context.Context, tx Tx) (int, error)
	CountReferralsOf(ctx context.Context, tx Tx, referrerID int64) (int, error)
	ListReferralsOf(ctx context.Context, tx Tx, referrerID int64) ([]*model.User, error)

	// ListExpiringBetween returns users with from <= subscription_end < to.
	ListExpiringBetween(ctx context.Context, tx Tx, from, to time.Time) ([]*model.User, error)
	ListWithoutFirstPayment(ctx context.Context, tx Tx) ([]*model.User, error)
	// ListUnprovisioned returns users with an active entitlement but no panel account.
	ListUnprovisioned(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.User, error)
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.User, error)
}
