package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/logging"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Compile-time check
var _ PasswordResetUseCase = (*passwordResetUC)(nil)

type PasswordResetUseCase interface {
	// RequestReset mails a 6-digit code to a registered web account.
	// Unknown emails are accepted silently.
	RequestReset(ctx context.Context, email string) error
	// Reset sets a new password when code matches the last one mailed to email.
	Reset(ctx context.Context, email, code, newPassword string) error
}

type passwordResetUC struct {
	users  repository.UserRepository
	codes  repository.ResetCodeRepository
	mailer adapter.MailSender
	log    *zerolog.Logger
}

func NewPasswordResetUseCase(
	users repository.UserRepository,
	codes repository.ResetCodeRepository,
	mailer adapter.MailSender,
	logger *zerolog.Logger,
) *passwordResetUC {
	return &passwordResetUC{users: users, codes: codes, mailer: mailer, log: logger}
}

func (p *passwordResetUC) RequestReset(ctx context.Context, email string) error {
	defer logging.TraceDuration(p.log, "PasswordResetUC.RequestReset")()

	u, err := p.users.FindByEmail(ctx, repository.NoTX, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.log.Info().Msg("password reset requested for an unknown email")
			return nil
		}
		return err
	}

	code, err := newResetCode()
	if err != nil {
		return err
	}
	if err := p.codes.Issue(ctx, u.Email, code); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}
	if err := p.mailer.SendPasswordResetCode(ctx, u.Email, code); err != nil {
		p.log.Error().Err(err).Int64("user_id", u.ID).Msg("reset code mail failed")
		return fmt.Errorf("send reset code: %w", err)
	}
	p.log.Info().Int64("user_id", u.ID).Msg("password reset code sent")
	return nil
}

func (p *passwordResetUC) Reset(ctx context.Context, email, code, newPassword string) error {
	defer logging.TraceDuration(p.log, "PasswordResetUC.Reset")()

	if len(newPassword) < 8 {
		return domain.ErrInvalidArgument
	}
	u, err := p.users.FindByEmail(ctx, repository.NoTX, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrResetCodeInvalid
		}
		return err
	}
	ok, err := p.codes.Consume(ctx, u.Email, code)
	if err != nil {
		return err
	}
	if !ok {
		p.log.Warn().Int64("user_id", u.ID).Msg("wrong or expired reset code")
		return domain.ErrResetCodeInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := p.users.SetPasswordHash(ctx, repository.NoTX, u.ID, string(hash)); err != nil {
		return err
	}
	p.log.Info().Int64("user_id", u.ID).Msg("password reset")
	return nil
}

func newResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
