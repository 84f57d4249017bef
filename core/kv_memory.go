package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryKVStore is a process-local KVStore with per-key expiry.
type MemoryKVStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryKVStore() *MemoryKVStore {
	return NewMemoryKVStoreWithClock(time.Now)
}

func NewMemoryKVStoreWithClock(now func() time.Time) *MemoryKVStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryKVStore{
		now:     now,
		entries: map[string]memoryEntry{},
	}
}

func (s *MemoryKVStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return fmt.Errorf("core: kv store is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("core: kv key is required")
	}
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryKVStore) Get(_ context.Context, key string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("core: kv store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.liveEntry(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *MemoryKVStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: kv store is not configured")
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryKVStore) Take(_ context.Context, key string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("core: kv store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.liveEntry(key)
	delete(s.entries, key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return entry.value, nil
}

// liveEntry must be called with mu held; expired entries are evicted.
func (s *MemoryKVStore) liveEntry(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
