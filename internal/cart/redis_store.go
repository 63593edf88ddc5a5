package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKV is the subset of pkg/redis.Client the store needs.
type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionKey string) string
}

// RedisStore keeps each cart as a JSON document whose key TTL tracks the
// cart horizon, so redis evicts idle carts on its own.
type RedisStore struct {
	client redisKV
	now    func() time.Time
}

// NewRedisStore builds a redis-backed store.
func NewRedisStore(client redisKV, now func() time.Time) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, now: now}, nil
}

func (s *RedisStore) Load(ctx context.Context, sessionKey string) (*Aggregate, error) {
	payload, err := s.client.Get(ctx, s.client.CartKey(sessionKey))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	var agg Aggregate
	if err := json.Unmarshal([]byte(payload), &agg); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if agg.Items == nil {
		agg.Items = []LineItem{}
	}
	return &agg, nil
}

func (s *RedisStore) Save(ctx context.Context, agg *Aggregate) error {
	key := s.client.CartKey(agg.SessionKey)
	ttl := agg.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.client.Del(ctx, key)
	}
	payload, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, ttl); err != nil {
		return fmt.Errorf("set cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionKey string) error {
	return s.client.Del(ctx, s.client.CartKey(sessionKey))
}
