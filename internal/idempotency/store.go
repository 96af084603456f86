// Package idempotency caches the result of keyed requests so retries replay
// the original outcome instead of settling again.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// Store is the replay-cache contract. Payloads are opaque to the store; the
// caller serializes whatever result it wants replayed. Store is first write
// wins: a second write under a live key is a no-op.
type Store interface {
	Lookup(ctx context.Context, key string) (payload []byte, ok bool, err error)
	Store(ctx context.Context, key string, payload []byte) error
}

type record struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is an in-process Store with TTL expiry. Expired records are treated
// as absent and purged lazily when looked up.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[string]record
}

// NewMemory builds an in-memory store whose records live for ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]record),
	}
}

// Lookup returns the stored payload, or absent if the key was never stored or
// its TTL has elapsed.
func (m *Memory) Lookup(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(rec.expiresAt) {
		delete(m.records, key)
		return nil, false, nil
	}
	return rec.payload, true, nil
}

// Store records the payload with a fresh expiry unless a live record already
// exists for the key.
func (m *Memory) Store(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[key]; ok && m.now().Before(rec.expiresAt) {
		return nil
	}
	m.records[key] = record{
		payload:   append([]byte(nil), payload...),
		expiresAt: m.now().Add(m.ttl),
	}
	return nil
}
