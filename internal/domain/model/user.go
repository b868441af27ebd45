package model

import (
	"fmt"
	"strings"
	"time"

	"vpn-subscription-bot/internal/domain"
)

// Origin tells which front door a user came through.
type Origin string

const (
	OriginBot Origin = "bot"
	OriginWeb Origin = "web"
)

// OriginOf derives the origin from the sign of a user id: web accounts get negative ids.
func OriginOf(id int64) Origin {
	if id < 0 {
		return OriginWeb
	}
	return OriginBot
}

// User is the entitlement record of a single customer.
// SubscriptionEnd == nil means the user never had access.
type User struct {
	ID                 int64
	FullName           string
	Username           string
	Email              string
	PasswordHash       string
	SubscriptionEnd    *time.Time
	PanelUsername      string
	ReferrerID         *int64
	ReferralBonusDays  int
	IsFirstPaymentMade bool
	HasReceivedTrial   bool
	SupportTopicID     *int64
	CreatedAt          time.Time
}

// NewUser builds a chat-originated user.
func NewUser(id int64, fullName, username string) (*User, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:        id,
		FullName:  fullName,
		Username:  username,
		CreatedAt: time.Now(),
	}, nil
}

// NewWebUser builds a dashboard-originated user. The id must be negative.
func NewWebUser(id int64, email, passwordHash string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if id >= 0 || email == "" || passwordHash == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:           id,
		FullName:     email,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}, nil
}

func (u *User) Origin() Origin { return OriginOf(u.ID) }

func (u *User) HasPanelAccount() bool { return u != nil && u.PanelUsername != "" }

// IsActive reports whether the entitlement is still valid at now.
func (u *User) IsActive(now time.Time) bool {
	return u.SubscriptionEnd != nil && u.SubscriptionEnd.After(now)
}

// SetReferrer records who invited the user. It can only happen once.
func (u *User) SetReferrer(referrerID int64) error {
	if referrerID == 0 {
		return domain.ErrInvalidArgument
	}
	if referrerID == u.ID {
		return domain.ErrSelfReferral
	}
	if u.ReferrerID != nil {
		return domain.ErrReferrerAlreadySet
	}
	u.ReferrerID = &referrerID
	return nil
}

// PanelUsernameFor derives the deterministic panel account name for a user id.
func PanelUsernameFor(id int64) string {
	if id < 0 {
		return fmt.Sprintf("web_%d", -id)
	}
	return fmt.Sprintf("user_%d", id)
}
