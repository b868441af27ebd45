//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/i18n"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt64(v int64) *int64        { return &v }

// closeTo reports whether a and b differ by less than a few seconds.
func closeTo(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < 5*time.Second
}

// =============================
// Adapters
// =============================

// ---- Mock TelegramBotAdapter ----

type MockTelegramBot struct {
	mu   sync.Mutex
	Sent []adapter.SendMessageParams

	Members      map[int64]map[int64]bool // channel -> user -> member
	nextTopicID  int64
	ClosedTopics []int64

	SendMessageFunc func(ctx context.Context, params adapter.SendMessageParams) error
	IsMemberErr     error
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func NewMockTelegramBot() *MockTelegramBot {
	return &MockTelegramBot{Members: map[int64]map[int64]bool{}, nextTopicID: 100}
}

func (m *MockTelegramBot) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, params)
	return nil
}

func (m *MockTelegramBot) IsChannelMember(ctx context.Context, channelID, userID int64) (bool, error) {
	if m.IsMemberErr != nil {
		return false, m.IsMemberErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Members[channelID][userID], nil
}

func (m *MockTelegramBot) CreateForumTopic(ctx context.Context, chatID int64, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTopicID++
	return m.nextTopicID, nil
}

func (m *MockTelegramBot) CloseForumTopic(ctx context.Context, chatID, topicID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClosedTopics = append(m.ClosedTopics, topicID)
	return nil
}

func (m *MockTelegramBot) Join(channelID, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Members[channelID] == nil {
		m.Members[channelID] = map[int64]bool{}
	}
	m.Members[channelID][userID] = true
}

func (m *MockTelegramBot) SentTo(chatID int64) []adapter.SendMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []adapter.SendMessageParams
	for _, p := range m.Sent {
		if p.ChatID == chatID {
			out = append(out, p)
		}
	}
	return out
}

// ---- Mock PanelClient ----

// MockPanel keeps accounts in memory and applies the same expiry rule as the real panel.
type MockPanel struct {
	mu       sync.Mutex
	Accounts map[string]*model.PanelAccount
	Now      func() time.Time

	FetchErr  error
	CreateErr error
	ExtendErr error
	DeleteErr error
	// AfterExtend runs once a successful extend has been recorded.
	AfterExtend func(username string)

	Calls []string
}

var _ adapter.PanelClient = (*MockPanel)(nil)

func NewMockPanel() *MockPanel {
	return &MockPanel{Accounts: map[string]*model.PanelAccount{}, Now: time.Now}
}

func (m *MockPanel) record(call string) {
	m.Calls = append(m.Calls, call)
}

func (m *MockPanel) EnsureSession(ctx context.Context) error { return nil }

func (m *MockPanel) CreateAccount(ctx context.Context, username string, days int) (*model.PanelAccount, error) {
	return m.CreateAccountUntil(ctx, username, m.Now().Add(time.Duration(days)*model.Day))
}

func (m *MockPanel) CreateAccountUntil(ctx context.Context, username string, expire time.Time) (*model.PanelAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create:" + username)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	name := strings.ToLower(username)
	if _, ok := m.Accounts[name]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPanelConflict, name)
	}
	acc := &model.PanelAccount{Username: name, Status: "active", ExpiresAt: ptrTime(expire), SubscriptionURL: "https://panel/sub/" + name}
	m.Accounts[name] = acc
	cp := *acc
	return &cp, nil
}

func (m *MockPanel) FetchAccount(ctx context.Context, username string) (*model.PanelAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("fetch:" + username)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	acc, ok := m.Accounts[strings.ToLower(username)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPanelNotFound, username)
	}
	cp := *acc
	return &cp, nil
}

func (m *MockPanel) ExtendAccount(ctx context.Context, username string, days int) (*model.PanelAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("extend:" + username)
	if m.ExtendErr != nil {
		return nil, m.ExtendErr
	}
	acc, ok := m.Accounts[strings.ToLower(username)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPanelNotFound, username)
	}
	acc.ExpiresAt = ptrTime(model.ExtendExpiry(acc.ExpiresAt, m.Now(), days))
	acc.Status = "active"
	cp := *acc
	if m.AfterExtend != nil {
		m.AfterExtend(acc.Username)
	}
	return &cp, nil
}

func (m *MockPanel) DeleteAccount(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete:" + username)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Accounts, strings.ToLower(username))
	return nil
}

func (m *MockPanel) Inbounds(ctx context.Context) ([]model.PanelInbound, error) {
	return []model.PanelInbound{{Tag: "VLESS-Reality", Protocol: "vless", Network: "tcp", Port: 443}}, nil
}

func (m *MockPanel) Nodes(ctx context.Context) ([]model.PanelNode, error) {
	return nil, errors.New("nodes unsupported")
}

func (m *MockPanel) System(ctx context.Context) (*model.PanelSystemStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &model.PanelSystemStats{Version: "0.8.4", TotalUsers: int64(len(m.Accounts))}, nil
}

func (m *MockPanel) Seed(username string, expire *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accounts[username] = &model.PanelAccount{Username: username, Status: "active", ExpiresAt: expire}
}

func (m *MockPanel) Account(username string) *model.PanelAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Accounts[username]
}

func (m *MockPanel) CallCount(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu       sync.Mutex
	Requests []adapter.CreatePaymentRequest

	CreatePaymentFunc func(ctx context.Context, req adapter.CreatePaymentRequest) (*model.PaymentIntent, error)
	ParseWebhookFunc  func(body []byte) (*model.PaymentNotification, error)
	GetPaymentFunc    func(ctx context.Context, paymentID string) (*model.PaymentNotification, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*model.PaymentIntent, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, req)
	}
	id := uuid.NewString()
	return &model.PaymentIntent{
		PaymentID:       id,
		ConfirmationURL: "https://pay.example/" + id,
		Amount:          req.Amount,
		Currency:        req.Currency,
		IdempotenceKey:  uuid.NewString(),
	}, nil
}

func (m *MockPaymentGateway) ParseWebhook(body []byte) (*model.PaymentNotification, error) {
	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(body)
	}
	return nil, fmt.Errorf("mock gateway: %w", domain.ErrInvalidArgument)
}

func (m *MockPaymentGateway) GetPayment(ctx context.Context, paymentID string) (*model.PaymentNotification, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, paymentID)
	}
	return nil, domain.ErrNotFound
}

// ---- Mock TransactionLogger ----

type MockTxLogger struct {
	mu      sync.Mutex
	Entries []adapter.TransactionLogEntry
	Err     error
}

func (m *MockTxLogger) LogTransaction(ctx context.Context, e adapter.TransactionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Entries = append(m.Entries, e)
	return nil
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu    sync.Mutex
	users map[int64]*model.User

	SetSubscriptionEndFunc func(ctx context.Context, tx repository.Tx, id int64, until time.Time) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{users: map[int64]*model.User{}}
}

func cloneUser(u *model.User) *model.User {
	cp := *u
	if u.SubscriptionEnd != nil {
		cp.SubscriptionEnd = ptrTime(*u.SubscriptionEnd)
	}
	if u.ReferrerID != nil {
		cp.ReferrerID = ptrInt64(*u.ReferrerID)
	}
	if u.SupportTopicID != nil {
		cp.SupportTopicID = ptrInt64(*u.SupportTopicID)
	}
	return &cp
}

func (r *MockUserRepo) Seed(u *model.User) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	r.users[u.ID] = cloneUser(u)
	return u
}

// Peek returns the stored row.
func (r *MockUserRepo) Peek(id int64) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	return cloneUser(u)
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Email != "" {
		for id, other := range r.users {
			if id != u.ID && other.Email == u.Email {
				return domain.ErrAlreadyExists
			}
		}
	}
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *MockUserRepo) get(id int64) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return cloneUser(u), nil
}

func (r *MockUserRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if u.Email != "" && u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindBySupportTopic(ctx context.Context, tx repository.Tx, topicID int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.SupportTopicID != nil && *u.SupportTopicID == topicID {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.users, id)
	for _, u := range r.users {
		if u.ReferrerID != nil && *u.ReferrerID == id {
			u.ReferrerID = nil
		}
	}
	return nil
}

func (r *MockUserRepo) update(id int64, fn func(u *model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(id)
	if err != nil {
		return err
	}
	fn(u)
	return nil
}

func (r *MockUserRepo) SetSubscriptionEnd(ctx context.Context, tx repository.Tx, id int64, until time.Time) error {
	if r.SetSubscriptionEndFunc != nil {
		return r.SetSubscriptionEndFunc(ctx, tx, id, until)
	}
	return r.update(id, func(u *model.User) { u.SubscriptionEnd = ptrTime(until) })
}

func (r *MockUserRepo) SetPanelUsername(ctx context.Context, tx repository.Tx, id int64, name string) error {
	return r.update(id, func(u *model.User) { u.PanelUsername = name })
}

func (r *MockUserRepo) SetReferrer(ctx context.Context, tx repository.Tx, id, referrerID int64) (bool, error) {
	if id == referrerID {
		return false, domain.ErrSelfReferral
	}
	set := false
	err := r.update(id, func(u *model.User) {
		if u.ReferrerID == nil {
			u.ReferrerID = ptrInt64(referrerID)
			set = true
		}
	})
	return set, err
}

func (r *MockUserRepo) SetPasswordHash(ctx context.Context, tx repository.Tx, id int64, hash string) error {
	return r.update(id, func(u *model.User) { u.PasswordHash = hash })
}

func (r *MockUserRepo) AddReferralBonusDays(ctx context.Context, tx repository.Tx, id int64, days int) error {
	return r.update(id, func(u *model.User) { u.ReferralBonusDays += days })
}

func (r *MockUserRepo) ConsumeReferralBonusDays(ctx context.Context, tx repository.Tx, id int64, days int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(id)
	if err != nil {
		return err
	}
	if u.ReferralBonusDays < days {
		return domain.ErrNotFound
	}
	u.ReferralBonusDays -= days
	return nil
}

func (r *MockUserRepo) MarkFirstPaymentMade(ctx context.Context, tx repository.Tx, id int64) error {
	return r.update(id, func(u *model.User) { u.IsFirstPaymentMade = true })
}

func (r *MockUserRepo) MarkTrialReceived(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	flipped := false
	err := r.update(id, func(u *model.User) {
		if !u.HasReceivedTrial {
			u.HasReceivedTrial = true
			flipped = true
		}
	})
	return flipped, err
}

func (r *MockUserRepo) SetSupportTopic(ctx context.Context, tx repository.Tx, id int64, topicID *int64) error {
	return r.update(id, func(u *model.User) {
		if topicID == nil {
			u.SupportTopicID = nil
			return
		}
		u.SupportTopicID = ptrInt64(*topicID)
	})
}

func (r *MockUserRepo) count(pred func(u *model.User) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.users {
		if pred(u) {
			n++
		}
	}
	return n
}

func (r *MockUserRepo) filter(pred func(u *model.User) bool) []*model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.users {
		if pred(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	return r.count(func(*model.User) bool { return true }), nil
}

func (r *MockUserRepo) CountNewUsers(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	return r.count(func(u *model.User) bool { return !u.CreatedAt.Before(since) }), nil
}

func (r *MockUserRepo) CountActive(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	return r.count(func(u *model.User) bool { return u.IsActive(now) }), nil
}

func (r *MockUserRepo) CountByFirstPayment(ctx context.Context, tx repository.Tx, made bool) (int, error) {
	return r.count(func(u *model.User) bool { return u.IsFirstPaymentMade == made }), nil
}

func (r *MockUserRepo) CountReferrals(ctx context.Context, tx repository.Tx) (int, error) {
	return r.count(func(u *model.User) bool { return u.ReferrerID != nil }), nil
}

func (r *MockUserRepo) CountReferralsOf(ctx context.Context, tx repository.Tx, referrerID int64) (int, error) {
	return r.count(func(u *model.User) bool { return u.ReferrerID != nil && *u.ReferrerID == referrerID }), nil
}

func (r *MockUserRepo) ListReferralsOf(ctx context.Context, tx repository.Tx, referrerID int64) ([]*model.User, error) {
	return r.filter(func(u *model.User) bool { return u.ReferrerID != nil && *u.ReferrerID == referrerID }), nil
}

func (r *MockUserRepo) ListExpiringBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.User, error) {
	return r.filter(func(u *model.User) bool {
		return u.SubscriptionEnd != nil && !u.SubscriptionEnd.Before(from) && u.SubscriptionEnd.Before(to)
	}), nil
}

func (r *MockUserRepo) ListWithoutFirstPayment(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	return r.filter(func(u *model.User) bool { return !u.IsFirstPaymentMade }), nil
}

func (r *MockUserRepo) ListUnprovisioned(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.User, error) {
	out := r.filter(func(u *model.User) bool { return u.IsActive(now) && u.PanelUsername == "" })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockUserRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	out := r.filter(func(*model.User) bool { return true })
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock TariffRepository ----

type MockTariffRepo struct {
	mu      sync.Mutex
	tariffs map[int64]*model.Tariff
	nextID  int64
}

var _ repository.TariffRepository = (*MockTariffRepo)(nil)

func NewMockTariffRepo() *MockTariffRepo {
	return &MockTariffRepo{tariffs: map[int64]*model.Tariff{}}
}

func (r *MockTariffRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tariff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		r.nextID++
		t.ID = r.nextID
	} else if t.ID > r.nextID {
		r.nextID = t.ID
	}
	cp := *t
	r.tariffs[t.ID] = &cp
	return nil
}

func (r *MockTariffRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Tariff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tariffs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MockTariffRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	all, _ := r.ListAll(ctx, tx)
	var out []*model.Tariff
	for _, t := range all {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (r *MockTariffRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Tariff
	for _, t := range r.tariffs {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MockTariffRepo) Deactivate(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tariffs[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.IsActive = false
	return nil
}

// ---- Mock PromoRepository ----

type MockPromoRepo struct {
	mu          sync.Mutex
	promos      map[int64]*model.PromoCode
	redemptions map[[2]int64]model.PromoRedemption
	nextID      int64
}

var _ repository.PromoRepository = (*MockPromoRepo)(nil)

func NewMockPromoRepo() *MockPromoRepo {
	return &MockPromoRepo{promos: map[int64]*model.PromoCode{}, redemptions: map[[2]int64]model.PromoRedemption{}}
}

func (r *MockPromoRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, other := range r.promos {
		if id != p.ID && other.Code == p.Code {
			return domain.ErrAlreadyExists
		}
	}
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	}
	cp := *p
	r.promos[p.ID] = &cp
	return nil
}

func (r *MockPromoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code = model.CanonicalPromoCode(code)
	for _, p := range r.promos {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPromoNotFound
}

func (r *MockPromoRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PromoCode
	for _, p := range r.promos {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockPromoRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.promos[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.promos, id)
	return nil
}

func (r *MockPromoRepo) DecrementUses(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[id]
	if !ok || p.UsesLeft <= 0 {
		return domain.ErrPromoExhausted
	}
	p.UsesLeft--
	return nil
}

func (r *MockPromoRepo) HasRedeemed(ctx context.Context, tx repository.Tx, userID, promoID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.redemptions[[2]int64{userID, promoID}]
	return ok, nil
}

func (r *MockPromoRepo) InsertRedemption(ctx context.Context, tx repository.Tx, red *model.PromoRedemption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{red.UserID, red.PromoCodeID}
	if _, ok := r.redemptions[key]; ok {
		return domain.ErrPromoAlreadyRedeemed
	}
	r.redemptions[key] = *red
	return nil
}

func (r *MockPromoRepo) UsesLeft(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.promos[id].UsesLeft
}

// ---- Mock ProcessedPaymentRepository ----

type MockProcessedRepo struct {
	mu   sync.Mutex
	rows map[string]*model.ProcessedPayment
}

var _ repository.ProcessedPaymentRepository = (*MockProcessedRepo)(nil)

func NewMockProcessedRepo() *MockProcessedRepo {
	return &MockProcessedRepo{rows: map[string]*model.ProcessedPayment{}}
}

func (r *MockProcessedRepo) Insert(ctx context.Context, tx repository.Tx, p *model.ProcessedPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[p.PaymentID]; ok {
		return domain.ErrPaymentAlreadyProcessed
	}
	cp := *p
	r.rows[p.PaymentID] = &cp
	return nil
}

func (r *MockProcessedRepo) Exists(ctx context.Context, tx repository.Tx, paymentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[paymentID]
	return ok, nil
}

func (r *MockProcessedRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.ProcessedPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ProcessedPayment
	for _, p := range r.rows {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Forget simulates a rolled back insert.
func (r *MockProcessedRepo) Forget(paymentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, paymentID)
}

// ---- Mock ReminderLogRepository ----

type MockReminderRepo struct {
	mu   sync.Mutex
	rows map[string]bool
}

var _ repository.ReminderLogRepository = (*MockReminderRepo)(nil)

func NewMockReminderRepo() *MockReminderRepo {
	return &MockReminderRepo{rows: map[string]bool{}}
}

func reminderKey(userID int64, kind model.ReminderKind, expiresAt time.Time) string {
	return fmt.Sprintf("%d|%s|%d", userID, kind, expiresAt.UnixNano())
}

func (r *MockReminderRepo) Save(ctx context.Context, tx repository.Tx, userID int64, kind model.ReminderKind, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[reminderKey(userID, kind, expiresAt)] = true
	return nil
}

func (r *MockReminderRepo) Exists(ctx context.Context, tx repository.Tx, userID int64, kind model.ReminderKind, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[reminderKey(userID, kind, expiresAt)], nil
}

// ---- Mock ChannelRepository ----

type MockChannelRepo struct {
	mu       sync.Mutex
	channels map[int64]*model.Channel
}

var _ repository.ChannelRepository = (*MockChannelRepo)(nil)

func NewMockChannelRepo() *MockChannelRepo {
	return &MockChannelRepo{channels: map[int64]*model.Channel{}}
}

func (r *MockChannelRepo) Save(ctx context.Context, tx repository.Tx, c *model.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.channels[c.ID] = &cp
	return nil
}

func (r *MockChannelRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, id)
	return nil
}

func (r *MockChannelRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Channel
	for _, c := range r.channels {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- Mock SessionRepository ----

type MockSessionRepo struct {
	mu       sync.Mutex
	sessions map[int64]model.Session
	SetErr   error
}

var _ repository.SessionRepository = (*MockSessionRepo)(nil)

func NewMockSessionRepo() *MockSessionRepo {
	return &MockSessionRepo{sessions: map[int64]model.Session{}}
}

func (r *MockSessionRepo) Get(ctx context.Context, chatID int64) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (r *MockSessionRepo) Set(ctx context.Context, chatID int64, s model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SetErr != nil {
		return r.SetErr
	}
	r.sessions[chatID] = s
	return nil
}

func (r *MockSessionRepo) Clear(ctx context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, chatID)
	return nil
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker (implements redis.Locker port) ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrPaymentInFlight
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

func (l *MockLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// newTestTranslator loads the embedded catalog so messages look like production.
func newTestTranslator() *i18n.Translator {
	t, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		panic(err)
	}
	return t
}

// ---- Mock ResetCodeRepository ----

type MockResetCodes struct {
	mu    sync.Mutex
	codes map[string]string
}

var _ repository.ResetCodeRepository = (*MockResetCodes)(nil)

func NewMockResetCodes() *MockResetCodes {
	return &MockResetCodes{codes: map[string]string{}}
}

func (r *MockResetCodes) Issue(ctx context.Context, email, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[email] = code
	return nil
}

func (r *MockResetCodes) Consume(ctx context.Context, email, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.codes[email]; ok && c == code {
		delete(r.codes, email)
		return true, nil
	}
	return false, nil
}

// ---- Mock MailSender ----

type MockMailer struct {
	mu   sync.Mutex
	Sent map[string]string // email -> last code
	Err  error
}

var _ adapter.MailSender = (*MockMailer)(nil)

func (m *MockMailer) SendPasswordResetCode(ctx context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.Sent == nil {
		m.Sent = map[string]string{}
	}
	m.Sent[email] = code
	return nil
}
