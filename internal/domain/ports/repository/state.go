package repository

import (
	"context"

	"vpn-subscription-bot/internal/domain/model"
)

// SessionRepository stores the conversation state of chat users.
// Get returns domain.ErrNotFound when no session exists.
type SessionRepository interface {
	Get(ctx context.Context, chatID int64) (model.Session, error)
	Set(ctx context.Context, chatID int64, s model.Session) error
	Clear(ctx context.Context, chatID int64) error
}

// ResetCodeRepository keeps short-lived password reset codes keyed by email.
type ResetCodeRepository interface {
	// Issue replaces any pending code for email and clears its failed attempts.
	Issue(ctx context.Context, email, code string) error
	// Consume reports whether code matched; a matching code is removed.
	Consume(ctx context.Context, email, code string) (bool, error)
}
