package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 4 * time.Minute

// Lock grants one cron worker at a time the right to run a cycle.
type Lock interface {
	TryAcquire(ctx context.Context) (Lease, bool, error)
}

// Lease releases a held lock.
type Lease func(ctx context.Context) error

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a SETNX lock whose value identifies the holder.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	host   string
}

func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	return &RedisLock{client: client, key: key, ttl: ttl, host: host}, nil
}

// TryAcquire returns ok=false when another holder owns the key. The lease
// only deletes the key while it still carries this holder's token, so an
// expired lock picked up by another worker is left alone.
func (l *RedisLock) TryAcquire(ctx context.Context) (Lease, bool, error) {
	token := fmt.Sprintf("%s:%s", l.host, uuid.NewString())
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		return l.release(ctx, token)
	}, true, nil
}

func (l *RedisLock) release(ctx context.Context, token string) error {
	holder, err := l.client.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read lock holder: %w", err)
	case holder != token:
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
