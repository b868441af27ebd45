// File: internal/infra/adapters/panel/marzban_client.go
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vpn-subscription-bot/internal/config"
	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/infra/metrics"
)

var _ adapter.PanelClient = (*MarzbanClient)(nil)

// PanelError carries a non-2xx panel response.
type PanelError struct {
	Op     string
	Status int
	Body   string
}

func (e *PanelError) Error() string {
	return fmt.Sprintf("panel %s: http %d: %s", e.Op, e.Status, e.Body)
}

// MarzbanClient talks to the Marzban admin REST API with a cached bearer token.
type MarzbanClient struct {
	baseURL    string
	username   string
	password   string
	inboundTag string
	protocol   string

	tokenTTL     time.Duration
	safetyMargin time.Duration
	reqTimeout   time.Duration

	client  *http.Client
	limiter *rate.Limiter
	log     *zerolog.Logger
	now     func() time.Time

	// DeleteAccount retry policy; tests shorten it.
	retryInterval time.Duration

	mu        sync.Mutex
	token     string
	refreshAt time.Time
}

func NewMarzbanClient(cfg config.PanelConfig, logger *zerolog.Logger) (*MarzbanClient, error) {
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid panel url: %w", err)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("panel credentials empty")
	}
	l := logger.With().Str("component", "panel").Logger()
	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}
	return &MarzbanClient{
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		username:      cfg.Username,
		password:      cfg.Password,
		inboundTag:    cfg.InboundTag,
		protocol:      cfg.Protocol,
		tokenTTL:      cfg.TokenTTL,
		safetyMargin:  cfg.SafetyMargin,
		reqTimeout:    cfg.RequestTimeout,
		client:        &http.Client{},
		limiter:       rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		log:           &l,
		now:           time.Now,
		retryInterval: 500 * time.Millisecond,
	}, nil
}

// --- session ---

func (c *MarzbanClient) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Before(c.refreshAt) {
		return "", false
	}
	return c.token, true
}

func (c *MarzbanClient) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *MarzbanClient) EnsureSession(ctx context.Context) error {
	_, err := c.session(ctx)
	return err
}

// session returns a usable token, logging in when needed. Concurrent
// refreshes may both log in; the last one to finish is kept.
func (c *MarzbanClient) session(ctx context.Context) (string, error) {
	if tok, ok := c.cachedToken(); ok {
		return tok, nil
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObservePanelRequest("login", 0, time.Since(start))
		metrics.IncPanelTokenRefresh("error")
		return "", fmt.Errorf("panel login: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObservePanelRequest("login", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		metrics.IncPanelTokenRefresh("rejected")
		return "", &PanelError{Op: "login", Status: resp.StatusCode, Body: readSnippet(resp.Body)}
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.IncPanelTokenRefresh("error")
		return "", fmt.Errorf("panel login decode: %w", err)
	}
	if out.AccessToken == "" {
		metrics.IncPanelTokenRefresh("error")
		return "", errors.New("panel login: empty access token")
	}

	c.mu.Lock()
	c.token = out.AccessToken
	c.refreshAt = c.now().Add(c.tokenTTL - c.safetyMargin)
	c.mu.Unlock()
	metrics.IncPanelTokenRefresh("ok")
	c.log.Info().Msg("panel session refreshed")
	return out.AccessToken, nil
}

// --- transport ---

// call performs one authorized request. A 401 drops the token and retries once
// with a fresh login.
func (c *MarzbanClient) call(ctx context.Context, op, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		status, err := c.callOnce(ctx, op, method, path, payload, out)
		if status == http.StatusUnauthorized && attempt == 0 {
			c.invalidateToken()
			continue
		}
		return err
	}
}

func (c *MarzbanClient) callOnce(ctx context.Context, op, method, path string, payload []byte, out interface{}) (int, error) {
	tok, err := c.session(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObservePanelRequest(op, 0, time.Since(start))
		return 0, fmt.Errorf("panel %s: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.ObservePanelRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &PanelError{Op: op, Status: resp.StatusCode, Body: readSnippet(resp.Body)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("panel %s decode: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}

func statusOf(err error) int {
	var pe *PanelError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}

// --- accounts ---

type userResponse struct {
	Username        string   `json:"username"`
	Status          string   `json:"status"`
	Expire          *int64   `json:"expire"`
	DataLimit       *int64   `json:"data_limit"`
	UsedTraffic     int64    `json:"used_traffic"`
	SubscriptionURL string   `json:"subscription_url"`
	Links           []string `json:"links"`
}

func (u userResponse) toModel() *model.PanelAccount {
	acc := &model.PanelAccount{
		Username:        u.Username,
		Status:          u.Status,
		UsedTraffic:     u.UsedTraffic,
		SubscriptionURL: u.SubscriptionURL,
		Links:           u.Links,
	}
	if u.Expire != nil && *u.Expire > 0 {
		t := time.Unix(*u.Expire, 0).UTC()
		acc.ExpiresAt = &t
	}
	if u.DataLimit != nil {
		acc.DataLimit = *u.DataLimit
	}
	return acc
}

func normalize(username string) string { return strings.ToLower(strings.TrimSpace(username)) }

func (c *MarzbanClient) CreateAccount(ctx context.Context, username string, days int) (*model.PanelAccount, error) {
	if days <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return c.CreateAccountUntil(ctx, username, c.now().Add(time.Duration(days)*model.Day))
}

func (c *MarzbanClient) CreateAccountUntil(ctx context.Context, username string, expire time.Time) (*model.PanelAccount, error) {
	name := normalize(username)
	if name == "" {
		return nil, domain.ErrInvalidArgument
	}
	body := map[string]interface{}{
		"username": name,
		"expire":   expire.Unix(),
		"proxies":  map[string]interface{}{c.protocol: map[string]interface{}{}},
		"inbounds": map[string][]string{c.protocol: {c.inboundTag}},
	}
	var out userResponse
	if err := c.call(ctx, "create", http.MethodPost, "/api/user", body, &out); err != nil {
		if statusOf(err) == http.StatusConflict {
			return nil, fmt.Errorf("%w: %s", domain.ErrPanelConflict, name)
		}
		return nil, err
	}
	c.log.Info().Str("panel_user", name).Time("expire", expire).Msg("panel account created")
	return out.toModel(), nil
}

func (c *MarzbanClient) FetchAccount(ctx context.Context, username string) (*model.PanelAccount, error) {
	name := normalize(username)
	var out userResponse
	if err := c.call(ctx, "get", http.MethodGet, "/api/user/"+url.PathEscape(name), nil, &out); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrPanelNotFound, name)
		}
		// Callers treat any failure here as "no account"; the cause stays in the chain for logs.
		c.log.Warn().Err(err).Str("panel_user", name).Msg("panel fetch failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrPanelNotFound, err)
	}
	return out.toModel(), nil
}

func (c *MarzbanClient) ExtendAccount(ctx context.Context, username string, days int) (*model.PanelAccount, error) {
	if days <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	name := normalize(username)
	acc, err := c.FetchAccount(ctx, name)
	if err != nil {
		return nil, err
	}
	newExpire := model.ExtendExpiry(acc.ExpiresAt, c.now(), days)
	body := map[string]interface{}{
		"expire": newExpire.Unix(),
		"status": "active",
	}
	var out userResponse
	if err := c.call(ctx, "modify", http.MethodPut, "/api/user/"+url.PathEscape(name), body, &out); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrPanelNotFound, name)
		}
		return nil, err
	}
	c.log.Info().Str("panel_user", name).Int("days", days).Time("expire", newExpire).Msg("panel account extended")
	return out.toModel(), nil
}

func (c *MarzbanClient) DeleteAccount(ctx context.Context, username string) error {
	name := normalize(username)
	op := func() error {
		err := c.call(ctx, "delete", http.MethodDelete, "/api/user/"+url.PathEscape(name), nil, nil)
		switch st := statusOf(err); {
		case err == nil:
			return nil
		case st == http.StatusNotFound:
			c.log.Warn().Str("panel_user", name).Msg("panel account already absent")
			return nil
		case st >= 400 && st < 500 && st != http.StatusTooManyRequests:
			return backoff.Permanent(err)
		default:
			return err
		}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		c.log.Error().Err(err).Str("panel_user", name).Msg("panel delete failed")
		return err
	}
	return nil
}

// --- read-only infrastructure views ---

func (c *MarzbanClient) Inbounds(ctx context.Context) ([]model.PanelInbound, error) {
	var out map[string][]struct {
		Tag      string `json:"tag"`
		Protocol string `json:"protocol"`
		Network  string `json:"network"`
		Port     int    `json:"port"`
	}
	if err := c.call(ctx, "inbounds", http.MethodGet, "/api/inbounds", nil, &out); err != nil {
		return nil, err
	}
	var res []model.PanelInbound
	for proto, list := range out {
		for _, in := range list {
			p := in.Protocol
			if p == "" {
				p = proto
			}
			res = append(res, model.PanelInbound{Tag: in.Tag, Protocol: p, Network: in.Network, Port: in.Port})
		}
	}
	return res, nil
}

func (c *MarzbanClient) Nodes(ctx context.Context) ([]model.PanelNode, error) {
	var out []struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Address string `json:"address"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.call(ctx, "nodes", http.MethodGet, "/api/nodes", nil, &out); err != nil {
		return nil, err
	}
	res := make([]model.PanelNode, 0, len(out))
	for _, n := range out {
		res = append(res, model.PanelNode{ID: n.ID, Name: n.Name, Address: n.Address, Status: n.Status, Message: n.Message})
	}
	return res, nil
}

func (c *MarzbanClient) System(ctx context.Context) (*model.PanelSystemStats, error) {
	var out struct {
		Version           string  `json:"version"`
		MemTotal          int64   `json:"mem_total"`
		MemUsed           int64   `json:"mem_used"`
		CPUCores          int     `json:"cpu_cores"`
		CPUUsage          float64 `json:"cpu_usage"`
		TotalUser         int64   `json:"total_user"`
		UsersActive       int64   `json:"users_active"`
		IncomingBandwidth int64   `json:"incoming_bandwidth"`
		OutgoingBandwidth int64   `json:"outgoing_bandwidth"`
	}
	if err := c.call(ctx, "system", http.MethodGet, "/api/system", nil, &out); err != nil {
		return nil, err
	}
	return &model.PanelSystemStats{
		Version:       out.Version,
		MemTotal:      out.MemTotal,
		MemUsed:       out.MemUsed,
		CPUCores:      out.CPUCores,
		CPUUsage:      out.CPUUsage,
		TotalUsers:    out.TotalUser,
		UsersActive:   out.UsersActive,
		IncomingBytes: out.IncomingBandwidth,
		OutgoingBytes: out.OutgoingBandwidth,
	}, nil
}
