package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	values map[string]string
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRedisLockSingleHolder(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	first, err := NewRedisLock(store, "pf:payouts:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "pf:payouts:lock:cron", time.Minute)
	ctx := context.Background()

	release, ok, err := first.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected first acquire, got %v %v", ok, err)
	}
	if !strings.Contains(store.values["pf:payouts:lock:cron"], ":") {
		t.Fatalf("expected host-scoped token, got %q", store.values["pf:payouts:lock:cron"])
	}
	if _, ok, _ := second.TryAcquire(ctx); ok {
		t.Fatal("expected second acquire to fail while held")
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := second.TryAcquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}

func TestRedisLockLeaseIgnoresNewHolder(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	lock, _ := NewRedisLock(store, "lock", time.Minute)
	ctx := context.Background()

	release, ok, _ := lock.TryAcquire(ctx)
	if !ok {
		t.Fatal("expected acquire")
	}
	// simulate expiry followed by another worker taking the key
	store.values["lock"] = "other-host:token"

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["lock"] != "other-host:token" {
		t.Fatal("stale lease must not delete another holder's lock")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "key", time.Minute); err == nil {
		t.Fatal("expected nil client to fail")
	}
	if _, err := NewRedisLock(&memoryRedis{}, "", time.Minute); err == nil {
		t.Fatal("expected empty key to fail")
	}
}
