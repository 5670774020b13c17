package store

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/frewsxcv/template-tally/internal/errors"
)

// ErrStoreClosed is the cause reported by a MemoryStore used after Close.
var ErrStoreClosed = stderrors.New("memory store closed")

type memoryEntry struct {
	value    string
	expireAt time.Time // zero => no TTL
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// MemoryStore is an in-process Store with per-key expiry. It is only shared
// within one process, so it suits development servers and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
	closed  bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores value under key; a non-positive ttl never expires.
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewConnectivityError("memory set failed", ErrStoreClosed).WithComponent("store")
	}

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expireAt = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

// GetMany returns the live values for keys, nil where missing or expired.
func (s *MemoryStore) GetMany(_ context.Context, keys []string) ([]*string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.NewConnectivityError("memory mget failed", ErrStoreClosed).WithComponent("store")
	}

	now := s.now()
	result := make([]*string, len(keys))
	for i, key := range keys {
		entry, ok := s.entries[key]
		if !ok || entry.expired(now) {
			continue
		}
		value := entry.value
		result[i] = &value
	}
	return result, nil
}

// TTL returns the remaining lifetime of key and whether it is live.
func (s *MemoryStore) TTL(key string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || entry.expired(s.now()) {
		return 0, false
	}
	if entry.expireAt.IsZero() {
		return 0, true
	}
	return entry.expireAt.Sub(s.now()), true
}

// Purge drops expired entries and returns how many were removed.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping fails once the store is closed.
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.NewConnectivityError("memory ping failed", ErrStoreClosed).WithComponent("store")
	}
	return nil
}

// Close marks the store closed; later calls fail as connectivity errors.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
