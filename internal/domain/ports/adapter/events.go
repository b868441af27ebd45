package adapter

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/domain/model"
)

// TransactionLogEntry is the admin-facing record of one applied payment.
type TransactionLogEntry struct {
	PaymentID  string       `json:"payment_id"`
	Origin     model.Origin `json:"origin"`
	IsRenewal  bool         `json:"is_renewal"`
	UserID     int64        `json:"user_id"`
	Username   string       `json:"username,omitempty"`
	FullName   string       `json:"full_name,omitempty"`
	TariffName string       `json:"tariff_name"`
	Price      int64        `json:"price"`
	At         time.Time    `json:"at"`
}

// TransactionLogger ships transaction entries to wherever admins watch them.
type TransactionLogger interface {
	LogTransaction(ctx context.Context, e TransactionLogEntry) error
}
