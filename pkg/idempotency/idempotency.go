// Package idempotency reserves client supplied keys so a retried request replays the first result.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"
)

const DefaultTTL = 24 * time.Hour

const pending = "pending"

var ErrInFlight = errors.New("idempotency: request with this key is in flight")

// Store reserves a key. Reserve returns ("", nil) when the caller now owns the key,
// the stored result when the key already completed, or ErrInFlight.
type Store interface {
	Reserve(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key, result string) error
	Release(ctx context.Context, key string) error
}

type entry struct {
	value   string
	expires time.Time
}

// MemoryStore keeps keys in process. Expired keys are swept on Reserve at most once per sweep interval.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	keys      map[string]entry
	now       func() time.Time
	nextSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, keys: map[string]entry{}, now: time.Now}
}

func (m *MemoryStore) Reserve(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	if e, ok := m.keys[key]; ok && now.Before(e.expires) {
		if e.value == pending {
			return "", ErrInFlight
		}
		return e.value, nil
	}
	m.keys[key] = entry{value: pending, expires: now.Add(m.ttl)}
	return "", nil
}

func (m *MemoryStore) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for k, e := range m.keys {
		if !now.Before(e.expires) {
			delete(m.keys, k)
		}
	}
	m.nextSweep = now.Add(min(m.ttl, time.Minute))
}

// Len reports how many keys are held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

func (m *MemoryStore) Complete(_ context.Context, key, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = entry{value: result, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.keys[key]; ok && e.value == pending {
		delete(m.keys, key)
	}
	return nil
}
