//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/usecase"
)

func TestNotificationUseCase_SendExpiryReminders(t *testing.T) {
	ctx := context.Background()

	t.Run("each window reminds once per expiry", func(t *testing.T) {
		// --- Arrange ---
		users := NewMockUserRepo()
		bot := NewMockTelegramBot()
		now := time.Now()
		users.Seed(&model.User{ID: 60, SubscriptionEnd: ptrTime(now.Add(3*model.Day + time.Hour))})
		users.Seed(&model.User{ID: 61, SubscriptionEnd: ptrTime(now.Add(5 * time.Hour))})
		users.Seed(&model.User{ID: 62, SubscriptionEnd: ptrTime(now.Add(20 * model.Day))})
		users.Seed(&model.User{ID: -63, Email: "web@example.com", SubscriptionEnd: ptrTime(now.Add(5 * time.Hour))})
		uc := usecase.NewNotificationUseCase(users, NewMockReminderRepo(), bot, newTestTranslator(),
			usecase.ReminderOptions{Days: []int{3}, Hours: 24}, newTestLogger())

		// --- Act ---
		first, err1 := uc.SendExpiryReminders(ctx)
		second, err2 := uc.SendExpiryReminders(ctx)

		// --- Assert ---
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v / %v", err1, err2)
		}
		if first != 2 {
			t.Errorf("expected 2 reminders, got %d", first)
		}
		if second != 0 {
			t.Errorf("expected no repeats, got %d", second)
		}
		if len(bot.SentTo(60)) != 1 || len(bot.SentTo(61)) != 1 || len(bot.SentTo(62)) != 0 {
			t.Errorf("unexpected deliveries %+v", bot.Sent)
		}
	})

	t.Run("a renewed subscription is reminded again", func(t *testing.T) {
		users := NewMockUserRepo()
		bot := NewMockTelegramBot()
		users.Seed(&model.User{ID: 64, SubscriptionEnd: ptrTime(time.Now().Add(2 * time.Hour))})
		uc := usecase.NewNotificationUseCase(users, NewMockReminderRepo(), bot, newTestTranslator(),
			usecase.ReminderOptions{Hours: 24}, newTestLogger())

		_, _ = uc.SendExpiryReminders(ctx)
		_ = users.SetSubscriptionEnd(ctx, nil, 64, time.Now().Add(10*time.Hour))
		n, err := uc.SendExpiryReminders(ctx)

		if err != nil || n != 1 {
			t.Errorf("expected one new reminder, got %d / %v", n, err)
		}
	})
}
