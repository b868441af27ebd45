package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/logging"
	"vpn-subscription-bot/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// Profile is the read model shown by /profile and the dashboard.
type Profile struct {
	User      *model.User
	Account   *model.PanelAccount
	Referrals int
	Active    bool
}

// UserUseCase exposes user-related operations used by bot, dashboard and admin flows.
type UserUseCase interface {
	// RegisterOrFetch creates a chat user on first contact. A referrer is attached only on creation,
	// and only when it exists and is not the user itself.
	RegisterOrFetch(ctx context.Context, tgID int64, fullName, username string, referrerID *int64) (*model.User, bool, error)
	RegisterWeb(ctx context.Context, email, password string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Profile(ctx context.Context, id int64) (*Profile, error)
	// Delete removes the panel account first; the row is only deleted when that succeeded.
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, offset, limit int) ([]*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	panel adapter.PanelClient
	tm    repository.TransactionManager
	now   func() time.Time
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, panel adapter.PanelClient, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{
		users: users,
		panel: panel,
		tm:    tm,
		now:   time.Now,
		log:   logger,
	}
}

func (u *userUC) RegisterOrFetch(ctx context.Context, tgID int64, fullName, username string, referrerID *int64) (*model.User, bool, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()

	var (
		user    *model.User
		created bool
	)
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		usr, err := u.users.FindByIDForUpdate(ctx, tx, tgID)
		if err == nil {
			if (username != "" && usr.Username != username) || (fullName != "" && usr.FullName != fullName) {
				if username != "" {
					usr.Username = username
				}
				if fullName != "" {
					usr.FullName = fullName
				}
				if err := u.users.Save(ctx, tx, usr); err != nil {
					u.log.Error().Err(err).Int64("user_id", tgID).Msg("Failed to update user")
					return err
				}
			}
			user = usr
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		nu, err := model.NewUser(tgID, fullName, username)
		if err != nil {
			return err
		}
		if referrerID != nil {
			u.attachReferrer(ctx, tx, nu, *referrerID)
		}
		if err := u.users.Save(ctx, tx, nu); err != nil {
			return err
		}
		user = nu
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		metrics.IncUsersRegistered()
		u.log.Info().Int64("user_id", user.ID).Bool("referred", user.ReferrerID != nil).Msg("user registered")
	}
	return user, created, nil
}

// attachReferrer ignores self referrals and unknown referrers.
func (u *userUC) attachReferrer(ctx context.Context, tx repository.Tx, nu *model.User, referrerID int64) {
	if referrerID == nu.ID {
		return
	}
	if _, err := u.users.FindByID(ctx, tx, referrerID); err != nil {
		u.log.Debug().Err(err).Int64("referrer_id", referrerID).Msg("referrer ignored")
		return
	}
	if err := nu.SetReferrer(referrerID); err != nil {
		u.log.Debug().Err(err).Int64("referrer_id", referrerID).Msg("referrer ignored")
	}
}

const webIDAttempts = 3

func (u *userUC) RegisterWeb(ctx context.Context, email, password string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterWeb")()

	if len(password) < 8 {
		return nil, domain.ErrInvalidArgument
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	for i := 0; i < webIDAttempts; i++ {
		nu, err := model.NewWebUser(newWebUserID(), email, string(hash))
		if err != nil {
			return nil, err
		}
		if _, err := u.users.FindByID(ctx, repository.NoTX, nu.ID); err == nil {
			continue
		}
		if _, err := u.users.FindByEmail(ctx, repository.NoTX, nu.Email); err == nil {
			return nil, domain.ErrAlreadyExists
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		err = u.users.Save(ctx, repository.NoTX, nu)
		if err == nil {
			metrics.IncUsersRegistered()
			u.log.Info().Int64("user_id", nu.ID).Msg("web user registered")
			return nu, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		// email taken concurrently; the check above reports it on the next round
	}
	return nil, domain.ErrAlreadyExists
}

// newWebUserID returns a negative id that stays within the JS safe integer range.
func newWebUserID() int64 {
	return -(rand.Int64N(1<<53-1) + 1)
}

func (u *userUC) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.Authenticate")()

	usr, err := u.users.FindByEmail(ctx, repository.NoTX, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return usr, nil
}

func (u *userUC) Get(ctx context.Context, id int64) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, id)
}

func (u *userUC) Profile(ctx context.Context, id int64) (*Profile, error) {
	defer logging.TraceDuration(u.log, "UserUC.Profile")()

	usr, err := u.users.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	p := &Profile{User: usr, Active: usr.IsActive(u.now())}
	if n, err := u.users.CountReferralsOf(ctx, repository.NoTX, id); err == nil {
		p.Referrals = n
	} else {
		u.log.Warn().Err(err).Int64("user_id", id).Msg("referral count unavailable")
	}
	if usr.HasPanelAccount() {
		acc, err := u.panel.FetchAccount(ctx, usr.PanelUsername)
		if err != nil {
			u.log.Warn().Err(err).Int64("user_id", id).Msg("panel account unavailable for profile")
		} else {
			p.Account = acc
		}
	}
	return p, nil
}

func (u *userUC) Delete(ctx context.Context, id int64) error {
	defer logging.TraceDuration(u.log, "UserUC.Delete")()

	usr, err := u.users.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return err
	}
	if usr.HasPanelAccount() {
		if err := u.panel.DeleteAccount(ctx, usr.PanelUsername); err != nil {
			u.log.Error().Err(err).Int64("user_id", id).Str("panel_username", usr.PanelUsername).Msg("panel account not deleted, keeping user")
			return err
		}
	}
	if err := u.users.Delete(ctx, repository.NoTX, id); err != nil {
		return err
	}
	u.log.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

func (u *userUC) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	return u.users.List(ctx, repository.NoTX, offset, limit)
}
