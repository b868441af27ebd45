//go:build !integration

package web

import (
	"context"
	"time"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/usecase"
)

// --- Mock Use Cases ---

type mockUserUC struct {
	usecase.UserUseCase // Embed interface for forward compatibility
	users               map[int64]*model.User
	registerErr         error
	authErr             error
}

func newMockUserUC(users ...*model.User) *mockUserUC {
	m := &mockUserUC{users: map[int64]*model.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserUC) RegisterWeb(ctx context.Context, email, password string) (*model.User, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	u, err := model.NewWebUser(-101, email, "hash:"+password)
	if err != nil {
		return nil, err
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserUC) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	for _, u := range m.users {
		if u.Email == email && u.PasswordHash == "hash:"+password {
			return u, nil
		}
	}
	return nil, domain.ErrInvalidCredentials
}

func (m *mockUserUC) Get(ctx context.Context, id int64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (m *mockUserUC) Profile(ctx context.Context, id int64) (*usecase.Profile, error) {
	u, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &usecase.Profile{
		User:    u,
		Account: &model.PanelAccount{Username: u.PanelUsername, Status: "active", SubscriptionURL: "https://panel/sub/x"},
		Active:  u.IsActive(time.Now()),
	}, nil
}

func (m *mockUserUC) Delete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserUC) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	out := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

type mockTariffUC struct {
	usecase.TariffUseCase
	tariffs map[int64]*model.Tariff
	updated *model.Tariff
}

func (m *mockTariffUC) ListActive(ctx context.Context) ([]*model.Tariff, error) {
	var out []*model.Tariff
	for _, t := range m.tariffs {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTariffUC) Get(ctx context.Context, id int64) (*model.Tariff, error) {
	t, ok := m.tariffs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTariffUC) Create(ctx context.Context, name string, price int64, days int) (*model.Tariff, error) {
	t, err := model.NewTariff(name, price, days)
	if err != nil {
		return nil, err
	}
	t.ID = int64(len(m.tariffs) + 1)
	m.tariffs[t.ID] = t
	return t, nil
}

func (m *mockTariffUC) Update(ctx context.Context, t *model.Tariff) error {
	m.updated = t
	m.tariffs[t.ID] = t
	return nil
}

type mockPaymentUC struct {
	usecase.PaymentUseCase
	tariffs   *mockTariffUC
	initiated []int64
}

func (m *mockPaymentUC) Initiate(ctx context.Context, userID, tariffID int64) (*usecase.Checkout, error) {
	t, err := m.tariffs.Get(ctx, tariffID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, domain.ErrTariffInactive
	}
	m.initiated = append(m.initiated, userID)
	return &usecase.Checkout{
		Intent: &model.PaymentIntent{PaymentID: "pay-1", ConfirmationURL: "https://yoomoney/checkout/pay-1", Amount: t.Price},
		Tariff: t,
		Amount: t.Price,
	}, nil
}

func (m *mockPaymentUC) History(ctx context.Context, userID int64) ([]*model.ProcessedPayment, error) {
	return []*model.ProcessedPayment{{PaymentID: "pay-0", UserID: userID, TariffID: 1, Amount: 19900, Source: model.OriginWeb}}, nil
}

type mockStatsUC struct {
	usecase.StatsUseCase
	since time.Time
}

func (m *mockStatsUC) Overview(ctx context.Context, since time.Time) (*model.Stats, error) {
	m.since = since
	return &model.Stats{TotalUsers: 3, NewUsers: 1, ActiveSubscriptions: 2}, nil
}

type mockBroadcastUC struct {
	usecase.BroadcastUseCase
	audience model.BroadcastAudience
	text     string
}

func (m *mockBroadcastUC) Broadcast(ctx context.Context, audience model.BroadcastAudience, text string) (string, int, error) {
	m.audience, m.text = audience, text
	return "run-1", 7, nil
}

type mockProvisioningUC struct {
	usecase.ProvisioningUseCase
	user *model.User
	err  error
}

func (m *mockProvisioningUC) Grant(ctx context.Context, userID int64, days int, reason string) (*model.User, *usecase.ProvisionResult, error) {
	if m.user == nil {
		return nil, nil, domain.ErrNotFound
	}
	return m.user, &usecase.ProvisionResult{Username: m.user.PanelUsername}, m.err
}

type mockTrialUC struct {
	usecase.TrialUseCase
	claimed map[int64]bool
}

func (m *mockTrialUC) Claim(ctx context.Context, userID int64) (*model.User, error) {
	if m.claimed == nil {
		m.claimed = map[int64]bool{}
	}
	if m.claimed[userID] {
		return nil, domain.ErrTrialAlreadyUsed
	}
	m.claimed[userID] = true
	end := time.Now().Add(3 * model.Day)
	return &model.User{ID: userID, SubscriptionEnd: &end, HasReceivedTrial: true}, nil
}

type mockPasswordResetUC struct {
	requested []string
	codes     map[string]string // email -> valid code
	newPass   map[string]string
	sendErr   error
}

func (m *mockPasswordResetUC) RequestReset(ctx context.Context, email string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.requested = append(m.requested, email)
	return nil
}

func (m *mockPasswordResetUC) Reset(ctx context.Context, email, code, newPassword string) error {
	if m.codes[email] != code {
		return domain.ErrResetCodeInvalid
	}
	delete(m.codes, email)
	if m.newPass == nil {
		m.newPass = map[string]string{}
	}
	m.newPass[email] = newPassword
	return nil
}
