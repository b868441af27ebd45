//go:build !integration

package usecase_test

import (
	"context"
	"strconv"
	"time"

	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/usecase"
)

const testReferralBonusDays = 7

// fixture wires the real use cases over in-memory ports.
type fixture struct {
	users     *MockUserRepo
	tariffs   *MockTariffRepo
	promos    *MockPromoRepo
	processed *MockProcessedRepo
	reminders *MockReminderRepo
	channels  *MockChannelRepo
	sessions  *MockSessionRepo
	panel     *MockPanel
	gateway   *MockPaymentGateway
	bot       *MockTelegramBot
	txlog     *MockTxLogger
	locker    *MockLocker
	tm        *MockTxManager

	prov      usecase.ProvisioningUseCase
	referral  usecase.ReferralUseCase
	reconcile usecase.ReconcileUseCase
	promo     usecase.PromoUseCase
	payment   usecase.PaymentUseCase
	trial     usecase.TrialUseCase
}

func newFixture(opts usecase.ReconcileOptions) *fixture {
	f := &fixture{
		users:     NewMockUserRepo(),
		tariffs:   NewMockTariffRepo(),
		promos:    NewMockPromoRepo(),
		processed: NewMockProcessedRepo(),
		reminders: NewMockReminderRepo(),
		channels:  NewMockChannelRepo(),
		sessions:  NewMockSessionRepo(),
		panel:     NewMockPanel(),
		gateway:   &MockPaymentGateway{},
		bot:       NewMockTelegramBot(),
		txlog:     &MockTxLogger{},
		locker:    NewMockLocker(),
		tm:        NewMockTxManager(),
	}
	log := newTestLogger()
	tr := newTestTranslator()

	f.prov = usecase.NewProvisioningUseCase(f.users, f.panel, f.tm, log)
	f.referral = usecase.NewReferralUseCase(f.users, f.panel, f.prov, f.bot, f.tm, tr, testReferralBonusDays, log)
	f.reconcile = usecase.NewReconcileUseCase(f.gateway, f.users, f.tariffs, f.processed, f.prov, f.referral,
		f.txlog, f.bot, f.locker, f.tm, tr, opts, log)
	f.promo = usecase.NewPromoUseCase(f.promos, f.sessions, f.prov, f.tm, log)
	f.payment = usecase.NewPaymentUseCase(f.gateway, f.users, f.tariffs, f.processed, f.sessions,
		usecase.PaymentOptions{Currency: "RUB", ReturnURL: "https://t.me/vpn_bot"}, log)
	f.trial = usecase.NewTrialUseCase(f.users, f.channels, f.prov, f.bot, f.tm, 3, log)
	return f
}

func (f *fixture) seedTariff(name string, price int64, days int) *model.Tariff {
	t := &model.Tariff{Name: name, Price: price, DurationDays: days, IsActive: true, CreatedAt: time.Now()}
	_ = f.tariffs.Save(context.Background(), nil, t)
	return t
}

func (f *fixture) seedUser(id int64, mutate func(u *model.User)) *model.User {
	u := &model.User{ID: id, FullName: "User " + strconv.FormatInt(id, 10), Username: "u" + strconv.FormatInt(id, 10)}
	if mutate != nil {
		mutate(u)
	}
	return f.users.Seed(u)
}

func succeeded(paymentID string, userID, tariffID, amount int64) *model.PaymentNotification {
	return &model.PaymentNotification{
		Event:     model.PaymentEventSucceeded,
		PaymentID: paymentID,
		Status:    "succeeded",
		Amount:    amount,
		Currency:  "RUB",
		Metadata: map[string]string{
			model.MetaUserID:   strconv.FormatInt(userID, 10),
			model.MetaTariffID: strconv.FormatInt(tariffID, 10),
		},
	}
}
