package adapter

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/domain/model"
)

// PanelClient is the port to the remote VPN management panel.
// Usernames are lower-cased by implementations before they hit the wire.
type PanelClient interface {
	// EnsureSession logs in when the cached token is missing or past its refresh point.
	EnsureSession(ctx context.Context) error

	// CreateAccount returns an error wrapping domain.ErrPanelConflict when the account exists.
	CreateAccount(ctx context.Context, username string, days int) (*model.PanelAccount, error)
	// CreateAccountUntil is CreateAccount with an absolute expiry.
	CreateAccountUntil(ctx context.Context, username string, expire time.Time) (*model.PanelAccount, error)
	// FetchAccount returns an error wrapping domain.ErrPanelNotFound when the account is absent.
	// Transport failures also wrap domain.ErrPanelNotFound but keep the underlying cause in the chain.
	FetchAccount(ctx context.Context, username string) (*model.PanelAccount, error)
	// ExtendAccount moves expire to max(now, expire) + days.
	ExtendAccount(ctx context.Context, username string, days int) (*model.PanelAccount, error)
	// DeleteAccount treats an absent account as success and retries once on failure.
	DeleteAccount(ctx context.Context, username string) error

	Inbounds(ctx context.Context) ([]model.PanelInbound, error)
	Nodes(ctx context.Context) ([]model.PanelNode, error)
	System(ctx context.Context) (*model.PanelSystemStats, error)
}
