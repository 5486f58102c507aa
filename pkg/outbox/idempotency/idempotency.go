// Package idempotency records which externally delivered events have been
// applied so redeliveries can be ignored.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"
)

// pendingTTL bounds how long an unconfirmed claim blocks redeliveries.
const pendingTTL = 2 * time.Minute

// MarkerStore is the slice of the redis client the markers need.
type MarkerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CallbackKey(source, eventID string) string
}

// Markers holds one key per (source, event id) pair. A claim lives for
// pendingTTL until Confirm extends it to the full ttl.
type Markers struct {
	store   MarkerStore
	ttl     time.Duration
	pending time.Duration
	now     func() time.Time
}

func NewMarkers(store MarkerStore, ttl time.Duration) (*Markers, error) {
	if store == nil {
		return nil, errors.New("marker store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	pending := pendingTTL
	if ttl > 0 && ttl < pending {
		pending = ttl
	}
	return &Markers{store: store, ttl: ttl, pending: pending, now: time.Now}, nil
}

// Claim reports true when this caller is the first to see the event. The
// claim expires after pendingTTL unless confirmed, so a caller that dies
// before applying the event does not block redelivery.
func (m *Markers) Claim(ctx context.Context, source, eventID string) (bool, error) {
	key, err := m.key(source, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, "pending:"+m.stamp(), m.pending)
}

// Confirm marks a claimed event as applied for the full ttl. The stored value
// is the confirmation time, which helps when inspecting keys by hand.
func (m *Markers) Confirm(ctx context.Context, source, eventID string) error {
	key, err := m.key(source, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, m.stamp(), m.ttl)
}

// Release drops a claim so the event can be applied again.
func (m *Markers) Release(ctx context.Context, source, eventID string) error {
	key, err := m.key(source, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Markers) stamp() string {
	return m.now().UTC().Format(time.RFC3339)
}

func (m *Markers) key(source, eventID string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", errors.New("source is required")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return m.store.CallbackKey(source, eventID), nil
}
