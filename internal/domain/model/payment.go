package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"vpn-subscription-bot/internal/domain"
)

const (
	PaymentEventSucceeded         = "payment.succeeded"
	PaymentEventWaitingForCapture = "payment.waiting_for_capture"
	PaymentEventCanceled          = "payment.canceled"
	RefundEventSucceeded          = "refund.succeeded"
)

// Metadata keys carried by every payment intent.
const (
	MetaUserID   = "user_id"
	MetaTariffID = "tariff_id"
	MetaSource   = "source"
)

// PaymentNotification is a parsed gateway webhook. It is never persisted.
type PaymentNotification struct {
	Event     string
	PaymentID string
	Status    string
	Amount    int64
	Currency  string
	Metadata  map[string]string
}

// Actionable reports whether the event should trigger reconciliation.
func (n *PaymentNotification) Actionable() bool { return n.Event == PaymentEventSucceeded }

// PaymentMetadata is the typed form of the intent metadata.
type PaymentMetadata struct {
	UserID   int64
	TariffID int64
	Source   Origin
}

// ParseMetadata extracts user and tariff ids. Missing or malformed values wrap domain.ErrInvalidArgument.
func (n *PaymentNotification) ParseMetadata() (PaymentMetadata, error) {
	var md PaymentMetadata
	uid, err := parseMetaInt(n.Metadata, MetaUserID)
	if err != nil {
		return md, err
	}
	tid, err := parseMetaInt(n.Metadata, MetaTariffID)
	if err != nil {
		return md, err
	}
	md.UserID = uid
	md.TariffID = tid
	switch Origin(n.Metadata[MetaSource]) {
	case OriginWeb:
		md.Source = OriginWeb
	case OriginBot:
		md.Source = OriginBot
	default:
		md.Source = OriginOf(uid)
	}
	return md, nil
}

func parseMetaInt(md map[string]string, key string) (int64, error) {
	raw, ok := md[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("metadata %s missing: %w", key, domain.ErrInvalidArgument)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("metadata %s=%q malformed: %w", key, raw, domain.ErrInvalidArgument)
	}
	return v, nil
}

// PaymentIntent is what the gateway returns after creating a payment.
type PaymentIntent struct {
	PaymentID       string
	ConfirmationURL string
	Amount          int64
	Currency        string
	IdempotenceKey  string
}

// ProcessedPayment marks a payment id as applied. Its primary key is the dedup guard.
type ProcessedPayment struct {
	PaymentID   string
	UserID      int64
	TariffID    int64
	Amount      int64
	Source      Origin
	ProcessedAt time.Time
}
