//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/usecase"
)

func TestStatsUseCase(t *testing.T) {
	ctx := context.Background()
	users := NewMockUserRepo()
	panel := NewMockPanel()
	now := time.Now()
	users.Seed(&model.User{ID: 1, SubscriptionEnd: ptrTime(now.Add(model.Day)), IsFirstPaymentMade: true})
	users.Seed(&model.User{ID: 2, ReferrerID: ptrInt64(1), SubscriptionEnd: ptrTime(now.Add(-model.Day))})
	users.Seed(&model.User{ID: 3, CreatedAt: now.Add(-30 * model.Day)})
	panel.Seed("user_1", nil)
	uc := usecase.NewStatsUseCase(users, panel, newTestLogger())

	t.Run("overview counts users, payers and referrals", func(t *testing.T) {
		st, err := uc.Overview(ctx, now.Add(-model.Day))

		if err != nil {
			t.Fatalf("Overview failed: %v", err)
		}
		want := model.Stats{TotalUsers: 3, NewUsers: 2, ActiveSubscriptions: 1, WithFirstPayment: 1, WithoutFirstPayment: 2, TotalReferrals: 1}
		if *st != want {
			t.Errorf("got %+v, want %+v", *st, want)
		}
	})

	t.Run("panel status tolerates missing node support", func(t *testing.T) {
		st, err := uc.PanelStatus(ctx)

		if err != nil {
			t.Fatalf("PanelStatus failed: %v", err)
		}
		if st.System == nil || st.System.TotalUsers != 1 || len(st.Inbounds) != 1 || st.Nodes != nil {
			t.Errorf("unexpected status %+v", st)
		}
	})
}
