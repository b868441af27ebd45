//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/repository"
	red "vpn-subscription-bot/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerTariffRepo mocks the database repository that the tariff decorator wraps.
type mockInnerTariffRepo struct {
	SaveFunc       func(ctx context.Context, tx repository.Tx, t *model.Tariff) error
	FindByIDFunc   func(ctx context.Context, tx repository.Tx, id int64) (*model.Tariff, error)
	ListActiveFunc func(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error)
	ListAllFunc    func(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error)
	DeactivateFunc func(ctx context.Context, tx repository.Tx, id int64) error
}

func (m *mockInnerTariffRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tariff) error {
	return m.SaveFunc(ctx, tx, t)
}
func (m *mockInnerTariffRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Tariff, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerTariffRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	return m.ListActiveFunc(ctx, tx)
}
func (m *mockInnerTariffRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	return m.ListAllFunc(ctx, tx)
}
func (m *mockInnerTariffRepo) Deactivate(ctx context.Context, tx repository.Tx, id int64) error {
	return m.DeactivateFunc(ctx, tx, id)
}

// mockRedisClient mocks our Redis client wrapper. Unset funcs behave like an empty cache.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", redis.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Ping(ctx context.Context) error                      { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 1, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	return false, nil
}
func (m *mockRedisClient) Close() error { return nil }
