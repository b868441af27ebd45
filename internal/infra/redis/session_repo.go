package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps chat sessions in Redis as a tagged JSON envelope.
type SessionRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionRepo(client RedisClient, ttl time.Duration) *SessionRepo {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionRepo{client: client, ttl: ttl}
}

func (s *SessionRepo) key(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

func (s *SessionRepo) Get(ctx context.Context, chatID int64) (model.Session, error) {
	raw, err := s.client.Get(ctx, s.key(chatID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return model.UnmarshalSession([]byte(raw))
}

func (s *SessionRepo) Set(ctx context.Context, chatID int64, sess model.Session) error {
	data, err := model.MarshalSession(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(chatID), data, s.ttl)
}

func (s *SessionRepo) Clear(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, s.key(chatID))
}
