package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Promo ledger
	ErrPromoNotFound        = errors.New("promo code not found")
	ErrPromoExhausted       = errors.New("promo code has no uses left")
	ErrPromoExpired         = errors.New("promo code has expired")
	ErrPromoAlreadyRedeemed = errors.New("promo code already redeemed by this user")

	// Referral and trial
	ErrSelfReferral          = errors.New("user cannot refer themselves")
	ErrReferrerAlreadySet    = errors.New("referrer already set")
	ErrTrialAlreadyUsed      = errors.New("trial already received")
	ErrChannelsNotSubscribed = errors.New("user is not subscribed to required channels")

	// Payments
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
	ErrPaymentInFlight         = errors.New("payment is being processed")
	ErrTariffInactive          = errors.New("tariff is not active")

	// Panel
	ErrPanelNotFound = errors.New("panel account not found")
	ErrPanelConflict = errors.New("panel account already exists")
	// ErrProvisioningFailed means the entitlement was committed but the panel call failed.
	ErrProvisioningFailed = errors.New("panel provisioning failed")

	// Web accounts
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrResetCodeInvalid   = errors.New("reset code is invalid or expired")
	ErrNoSupportTicket    = errors.New("no open support ticket")
)
