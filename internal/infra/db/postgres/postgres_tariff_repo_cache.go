package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/metrics"
	red "vpn-subscription-bot/internal/infra/redis"
)

var _ repository.TariffRepository = (*tariffRepoCacheDecorator)(nil)

const activeTariffsKey = "tariffs:active"

type tariffRepoCacheDecorator struct {
	inner repository.TariffRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewTariffRepoCacheDecorator(inner repository.TariffRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.TariffRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &tariffRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger,
	}
}

func tariffKey(id int64) string { return fmt.Sprintf("tariff:%d", id) }

func (d *tariffRepoCacheDecorator) logCacheErr(err error, key string) {
	if err != nil && !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("tariff cache unavailable")
	}
}

// FindByID is read-through. Reads inside a transaction skip the cache.
func (d *tariffRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Tariff, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := tariffKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var t model.Tariff
		if json.Unmarshal([]byte(val), &t) == nil {
			metrics.IncTariffCache("tariff", true)
			return &t, nil
		}
	}
	d.logCacheErr(err, key)

	metrics.IncTariffCache("tariff", false)
	t, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, mErr := json.Marshal(t); mErr == nil {
		d.logCacheErr(d.cache.Set(ctx, key, b, d.ttl), key)
	}
	return t, nil
}

func (d *tariffRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	if tx != nil {
		return d.inner.ListActive(ctx, tx)
	}
	val, err := d.cache.Get(ctx, activeTariffsKey)
	if err == nil {
		var ts []*model.Tariff
		if json.Unmarshal([]byte(val), &ts) == nil {
			metrics.IncTariffCache("tariff_list", true)
			return ts, nil
		}
	}
	d.logCacheErr(err, activeTariffsKey)

	metrics.IncTariffCache("tariff_list", false)
	ts, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(ts) > 0 {
		if b, mErr := json.Marshal(ts); mErr == nil {
			d.logCacheErr(d.cache.Set(ctx, activeTariffsKey, b, d.ttl), activeTariffsKey)
		}
	}
	return ts, nil
}

// ListAll is an admin view and always goes to the database.
func (d *tariffRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	return d.inner.ListAll(ctx, tx)
}

func (d *tariffRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, t *model.Tariff) error {
	if err := d.inner.Save(ctx, tx, t); err != nil {
		return err
	}
	d.invalidate(ctx, t.ID)
	return nil
}

func (d *tariffRepoCacheDecorator) Deactivate(ctx context.Context, tx repository.Tx, id int64) error {
	if err := d.inner.Deactivate(ctx, tx, id); err != nil {
		return err
	}
	d.invalidate(ctx, id)
	return nil
}

func (d *tariffRepoCacheDecorator) invalidate(ctx context.Context, id int64) {
	d.logCacheErr(d.cache.Del(ctx, tariffKey(id), activeTariffsKey), activeTariffsKey)
}
