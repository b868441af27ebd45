package adapter

import (
	"context"

	"vpn-subscription-bot/internal/domain/model"
)

// CreatePaymentRequest describes one payment intent. Amount is in minor units.
type CreatePaymentRequest struct {
	Amount      int64
	Currency    string
	Description string
	ReturnURL   string
	UserID      int64
	Metadata    map[string]string
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string

	// CreatePayment registers an intent under a fresh idempotence key and returns the redirect URL.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*model.PaymentIntent, error)
	// ParseWebhook validates a webhook body. Malformed bodies wrap domain.ErrInvalidArgument.
	ParseWebhook(body []byte) (*model.PaymentNotification, error)
	// GetPayment reads the current state of a payment from the provider.
	GetPayment(ctx context.Context, paymentID string) (*model.PaymentNotification, error)
}
