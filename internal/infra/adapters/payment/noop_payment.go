package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for local runs and tests.
// Every created intent is reported as succeeded by GetPayment.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	intents map[string]adapter.CreatePaymentRequest
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		intents: make(map[string]adapter.CreatePaymentRequest),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*model.PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.intents[id] = req
	return &model.PaymentIntent{
		PaymentID:       id,
		ConfirmationURL: "https://example.test/pay/" + id,
		Amount:          req.Amount,
		Currency:        req.Currency,
		IdempotenceKey:  "idem-" + id,
	}, nil
}

// ParseWebhook accepts the flat form {"event","payment_id","amount","metadata"}.
func (g *NoopPaymentGateway) ParseWebhook(body []byte) (*model.PaymentNotification, error) {
	var in struct {
		Event     string            `json:"event"`
		PaymentID string            `json:"payment_id"`
		Amount    int64             `json:"amount"`
		Metadata  map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(body, &in); err != nil || in.Event == "" || in.PaymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &model.PaymentNotification{
		Event:     in.Event,
		PaymentID: in.PaymentID,
		Status:    "succeeded",
		Amount:    in.Amount,
		Currency:  "RUB",
		Metadata:  in.Metadata,
	}, nil
}

func (g *NoopPaymentGateway) GetPayment(ctx context.Context, paymentID string) (*model.PaymentNotification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.intents[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	md := map[string]string{model.MetaUserID: strconv.FormatInt(req.UserID, 10)}
	for k, v := range req.Metadata {
		md[k] = v
	}
	return &model.PaymentNotification{
		Event:     model.PaymentEventSucceeded,
		PaymentID: paymentID,
		Status:    "succeeded",
		Amount:    req.Amount,
		Currency:  req.Currency,
		Metadata:  md,
	}, nil
}
