//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/usecase"
)

func newUserUC() (usecase.UserUseCase, *MockUserRepo, *MockPanel) {
	users := NewMockUserRepo()
	panel := NewMockPanel()
	return usecase.NewUserUseCase(users, panel, NewMockTxManager(), newTestLogger()), users, panel
}

func TestUserUseCase_RegisterOrFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("referrer is attached only when the user is created", func(t *testing.T) {
		// --- Arrange ---
		uc, users, _ := newUserUC()
		users.Seed(&model.User{ID: 1})
		users.Seed(&model.User{ID: 2})

		// --- Act ---
		u, created, err := uc.RegisterOrFetch(ctx, 3, "Three", "three", ptrInt64(1))
		again, createdAgain, err2 := uc.RegisterOrFetch(ctx, 3, "Three", "three", ptrInt64(2))

		// --- Assert ---
		if err != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v / %v", err, err2)
		}
		if !created || createdAgain {
			t.Errorf("expected created once, got %v then %v", created, createdAgain)
		}
		if u.ReferrerID == nil || *u.ReferrerID != 1 {
			t.Errorf("expected referrer 1, got %v", u.ReferrerID)
		}
		if again.ReferrerID == nil || *again.ReferrerID != 1 {
			t.Errorf("referrer must not change, got %v", again.ReferrerID)
		}
	})

	t.Run("self and unknown referrers are ignored", func(t *testing.T) {
		uc, _, _ := newUserUC()

		self, _, err1 := uc.RegisterOrFetch(ctx, 5, "Five", "", ptrInt64(5))
		ghost, _, err2 := uc.RegisterOrFetch(ctx, 6, "Six", "", ptrInt64(999))

		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v / %v", err1, err2)
		}
		if self.ReferrerID != nil || ghost.ReferrerID != nil {
			t.Errorf("expected no referrers, got %v / %v", self.ReferrerID, ghost.ReferrerID)
		}
	})

	t.Run("profile names are refreshed on later contact", func(t *testing.T) {
		uc, users, _ := newUserUC()
		users.Seed(&model.User{ID: 7, FullName: "Old", Username: "old"})

		_, _, err := uc.RegisterOrFetch(ctx, 7, "New", "new", nil)

		if err != nil {
			t.Fatalf("RegisterOrFetch failed: %v", err)
		}
		if got := users.Peek(7); got.Username != "new" || got.FullName != "New" {
			t.Errorf("expected refreshed names, got %q / %q", got.Username, got.FullName)
		}
	})
}

func TestUserUseCase_WebAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("registered web users get a negative id and can log in", func(t *testing.T) {
		uc, _, _ := newUserUC()

		u, err := uc.RegisterWeb(ctx, "Alice@Example.com", "correct horse")
		if err != nil {
			t.Fatalf("RegisterWeb failed: %v", err)
		}
		got, err := uc.Authenticate(ctx, "alice@example.com", "correct horse")

		if u.ID >= 0 || u.Origin() != model.OriginWeb {
			t.Errorf("expected a web id, got %d", u.ID)
		}
		if u.PasswordHash == "correct horse" {
			t.Error("password must be hashed")
		}
		if err != nil || got.ID != u.ID {
			t.Errorf("Authenticate failed: %v", err)
		}
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		uc, _, _ := newUserUC()
		if _, err := uc.RegisterWeb(ctx, "bob@example.com", "password1"); err != nil {
			t.Fatalf("RegisterWeb failed: %v", err)
		}

		_, errPwd := uc.Authenticate(ctx, "bob@example.com", "password2")
		_, errMail := uc.Authenticate(ctx, "nobody@example.com", "password1")

		if !errors.Is(errPwd, domain.ErrInvalidCredentials) || !errors.Is(errMail, domain.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v / %v", errPwd, errMail)
		}
	})

	t.Run("duplicate email and short passwords are refused", func(t *testing.T) {
		uc, _, _ := newUserUC()
		if _, err := uc.RegisterWeb(ctx, "carol@example.com", "password1"); err != nil {
			t.Fatalf("RegisterWeb failed: %v", err)
		}

		_, errDup := uc.RegisterWeb(ctx, "carol@example.com", "password2")
		_, errShort := uc.RegisterWeb(ctx, "dave@example.com", "short")

		if !errors.Is(errDup, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", errDup)
		}
		if !errors.Is(errShort, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", errShort)
		}
	})
}

func TestUserUseCase_ProfileAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("profile joins the panel account and referral count", func(t *testing.T) {
		uc, users, panel := newUserUC()
		end := time.Now().Add(model.Day)
		users.Seed(&model.User{ID: 8, SubscriptionEnd: ptrTime(end), PanelUsername: "user_8"})
		users.Seed(&model.User{ID: 9, ReferrerID: ptrInt64(8)})
		panel.Seed("user_8", ptrTime(end))

		p, err := uc.Profile(ctx, 8)

		if err != nil {
			t.Fatalf("Profile failed: %v", err)
		}
		if !p.Active || p.Referrals != 1 || p.Account == nil {
			t.Errorf("unexpected profile %+v", p)
		}
	})

	t.Run("user is kept when the panel refuses the delete", func(t *testing.T) {
		uc, users, panel := newUserUC()
		users.Seed(&model.User{ID: 10, PanelUsername: "user_10"})
		panel.Seed("user_10", nil)
		panel.DeleteErr = errors.New("panel 500")

		err := uc.Delete(ctx, 10)

		if err == nil {
			t.Fatal("expected an error")
		}
		if users.Peek(10) == nil {
			t.Error("user must survive a failed panel delete")
		}
	})

	t.Run("delete removes the panel account and the row", func(t *testing.T) {
		uc, users, panel := newUserUC()
		users.Seed(&model.User{ID: 11, PanelUsername: "user_11"})
		panel.Seed("user_11", nil)

		if err := uc.Delete(ctx, 11); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		if users.Peek(11) != nil || panel.Account("user_11") != nil {
			t.Error("expected both sides removed")
		}
	})
}
