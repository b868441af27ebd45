package redis

import (
	"context"
	"strings"
	"time"

	"vpn-subscription-bot/internal/domain/ports/repository"
)

var _ repository.ResetCodeRepository = (*ResetCodeRepo)(nil)

// ResetCodeRepo stores one password reset code per email. After maxAttempts
// wrong guesses the code is dropped and a new one has to be requested.
type ResetCodeRepo struct {
	client      RedisClient
	ttl         time.Duration
	maxAttempts int
}

func NewResetCodeRepo(client RedisClient, ttl time.Duration, maxAttempts int) *ResetCodeRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &ResetCodeRepo{client: client, ttl: ttl, maxAttempts: maxAttempts}
}

func resetCodeKey(email string) string {
	return "pwreset:code:" + strings.ToLower(strings.TrimSpace(email))
}

func resetAttemptsKey(email string) string {
	return "pwreset:attempts:" + strings.ToLower(strings.TrimSpace(email))
}

func (r *ResetCodeRepo) Issue(ctx context.Context, email, code string) error {
	if err := r.client.Del(ctx, resetAttemptsKey(email)); err != nil {
		return err
	}
	return r.client.Set(ctx, resetCodeKey(email), code, r.ttl)
}

func (r *ResetCodeRepo) Consume(ctx context.Context, email, code string) (bool, error) {
	attempts, err := r.client.Incr(ctx, resetAttemptsKey(email))
	if err != nil {
		return false, err
	}
	if attempts == 1 {
		if err := r.client.Expire(ctx, resetAttemptsKey(email), r.ttl); err != nil {
			return false, err
		}
	}
	if attempts > int64(r.maxAttempts) {
		return false, r.client.Del(ctx, resetCodeKey(email))
	}

	// compare-and-delete keeps the code single use under concurrent submits
	ok, err := r.client.DelIfEquals(ctx, resetCodeKey(email), code)
	if err != nil || !ok {
		return false, err
	}
	return true, r.client.Del(ctx, resetAttemptsKey(email))
}
