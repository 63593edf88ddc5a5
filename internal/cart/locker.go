package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/localstore-backend/pkg/logger"
)

// KeyLocker serializes work per session key. Different keys never block each other.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker is an in-process keyed mutex. Entries are dropped once unused.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker builds an empty keyed mutex.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*lockEntry)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(key, entry)
		})
	}, nil
}

func (l *LocalLocker) release(key string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports how many keys currently hold or await the lock.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// lockStore is the subset of pkg/redis.Client used by RedisLocker.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(scope, id string) string
}

// RedisLocker holds a per-key lease in redis so several API instances share
// one critical section per cart. The lease TTL bounds how long a crashed
// holder can block the key.
type RedisLocker struct {
	client lockStore
	ttl    time.Duration
	retry  time.Duration
	logg   *logger.Logger
}

// NewRedisLocker builds a distributed keyed lock. The lease is not renewed:
// a holder that runs longer than ttl loses exclusivity and another instance
// may enter the same cart. ttl must therefore exceed the slowest mutation,
// including the catalog lookup and the store write. logg may be nil.
func NewRedisLocker(client lockStore, ttl, retry time.Duration, logg *logger.Logger) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &RedisLocker{client: client, ttl: ttl, retry: retry, logg: logg}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.client.LockKey("cart", key)
	owner := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, owner, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire cart lock: %w", err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the request context may already be done; release must still run
			l.release(context.Background(), lockKey, owner)
		})
	}, nil
}

// release deletes the lease only while this owner still holds it. A lease
// found expired or taken over means the critical section outlived ttl.
func (l *RedisLocker) release(ctx context.Context, lockKey, owner string) {
	value, err := l.client.Get(ctx, lockKey)
	switch {
	case errors.Is(err, redis.Nil):
		l.warn(ctx, lockKey, "cart lock lease expired before release")
		return
	case err != nil:
		l.fail(ctx, lockKey, "read cart lock for release", err)
		return
	case value != owner:
		l.warn(ctx, lockKey, "cart lock lease taken over before release")
		return
	}
	if err := l.client.Del(ctx, lockKey); err != nil {
		l.fail(ctx, lockKey, "release cart lock", err)
	}
}

func (l *RedisLocker) warn(ctx context.Context, lockKey, msg string) {
	if l.logg == nil {
		return
	}
	l.logg.Warn(l.logg.WithField(ctx, "lock_key", lockKey), msg)
}

func (l *RedisLocker) fail(ctx context.Context, lockKey, msg string, err error) {
	if l.logg == nil {
		return
	}
	l.logg.Error(l.logg.WithField(ctx, "lock_key", lockKey), msg, err)
}
