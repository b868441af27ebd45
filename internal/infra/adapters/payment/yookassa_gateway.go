// File: internal/infra/adapters/payment/yookassa_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*YooKassaGateway)(nil)

// YooKassaGateway implements adapter.PaymentGateway over the YooKassa v3 REST API.
type YooKassaGateway struct {
	shopID    string
	secretKey string
	baseURL   string
	returnURL string
	client    *http.Client
}

func NewYooKassaGateway(shopID, secretKey, baseURL, returnURL string) (*YooKassaGateway, error) {
	if shopID == "" || secretKey == "" {
		return nil, errors.New("yookassa credentials empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid yookassa base url: %w", err)
	}
	return &YooKassaGateway{
		shopID:    shopID,
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		returnURL: returnURL,
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *YooKassaGateway) Name() string { return "yookassa" }

// CreatePayment posts /payments with a fresh Idempotence-Key and capture=true.
func (g *YooKassaGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*model.PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = g.returnURL
	}
	body := createPaymentRequest{
		Amount:       Amount{Value: model.FormatAmount(req.Amount), Currency: req.Currency},
		Confirmation: confirmation{Type: "redirect", ReturnURL: returnURL},
		Capture:      true,
		Description:  req.Description,
		Metadata:     req.Metadata,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	key := uuid.NewString()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payments", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", key)
	httpReq.SetBasicAuth(g.shopID, g.secretKey)

	var out paymentObject
	if err := g.do(httpReq, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.Confirmation == nil || out.Confirmation.ConfirmationURL == "" {
		return nil, errors.New("yookassa: response without confirmation url")
	}
	amount, err := parseAmount(out.Amount.Value)
	if err != nil {
		amount = req.Amount
	}
	return &model.PaymentIntent{
		PaymentID:       out.ID,
		ConfirmationURL: out.Confirmation.ConfirmationURL,
		Amount:          amount,
		Currency:        out.Amount.Currency,
		IdempotenceKey:  key,
	}, nil
}

// GetPayment reads /payments/{id}; used to double-check webhook claims.
func (g *YooKassaGateway) GetPayment(ctx context.Context, paymentID string) (*model.PaymentNotification, error) {
	if paymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.shopID, g.secretKey)

	var out paymentObject
	if err := g.do(httpReq, &out); err != nil {
		return nil, err
	}
	return toNotification("payment."+out.Status, out)
}

// ParseWebhook decodes a notification body. It does not authenticate the sender.
func (g *YooKassaGateway) ParseWebhook(body []byte) (*model.PaymentNotification, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("webhook json: %w", domain.ErrInvalidArgument)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("webhook without event: %w", domain.ErrInvalidArgument)
	}
	if env.Event != model.PaymentEventSucceeded {
		return &model.PaymentNotification{
			Event:     env.Event,
			PaymentID: env.Object.ID,
			Status:    env.Object.Status,
			Metadata:  map[string]string{},
		}, nil
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("webhook json: %w", domain.ErrInvalidArgument)
	}
	if p.Event == "" || p.Object.ID == "" {
		return nil, fmt.Errorf("webhook without event or object id: %w", domain.ErrInvalidArgument)
	}
	return toNotification(p.Event, p.Object)
}

func toNotification(event string, obj paymentObject) (*model.PaymentNotification, error) {
	n := &model.PaymentNotification{
		Event:     event,
		PaymentID: obj.ID,
		Status:    obj.Status,
		Currency:  obj.Amount.Currency,
		Metadata:  obj.Metadata,
	}
	if n.Metadata == nil {
		n.Metadata = map[string]string{}
	}
	if obj.Amount.Value != "" {
		amount, err := parseAmount(obj.Amount.Value)
		if err != nil {
			return nil, err
		}
		n.Amount = amount
	}
	return n, nil
}

func (g *YooKassaGateway) do(req *http.Request, out interface{}) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		_ = json.NewDecoder(resp.Body).Decode(&ae)
		return fmt.Errorf("yookassa http %d: %s %s", resp.StatusCode, ae.Code, ae.Description)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseAmount converts "199.00" (or "199", "199.5") into minor units.
func parseAmount(v string) (int64, error) {
	v = strings.TrimSpace(v)
	whole, frac, hasFrac := strings.Cut(v, ".")
	if whole == "" || (hasFrac && (len(frac) == 0 || len(frac) > 2)) {
		return 0, fmt.Errorf("amount %q: %w", v, domain.ErrInvalidArgument)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("amount %q: %w", v, domain.ErrInvalidArgument)
	}
	var f int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("amount %q: %w", v, domain.ErrInvalidArgument)
		}
	}
	return w*100 + f, nil
}
