package store

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryCapacity is the number of keys a MemoryStore keeps.
const DefaultMemoryCapacity = 1024

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process LRU store with per-key expiry.
type MemoryStore struct {
	data *lru.Cache[string, memoryEntry]
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding at most capacity keys.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	data, err := lru.New[string, memoryEntry](capacity)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &MemoryStore{data: data, now: time.Now}
}

// WithNowFunc overrides the clock used for expiry, for tests.
func (s *MemoryStore) WithNowFunc(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, ok := s.data.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.data.Remove(key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.data.Add(key, entry)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.data.Remove(key)
	return nil
}
