package store

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcached treats expirations above 30 days as absolute unix timestamps
const memcachedRelativeLimit = 30 * 24 * time.Hour

// MemcachedStore is a shared cache backed by memcached.
type MemcachedStore struct {
	mcd *memcache.Client
	now func() time.Time
}

var _ Store = (*MemcachedStore)(nil)

// NewMemcachedStore creates a store using the given server addresses.
func NewMemcachedStore(servers ...string) *MemcachedStore {
	return &MemcachedStore{
		mcd: memcache.New(servers...),
		now: time.Now,
	}
}

func (s *MemcachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := s.mcd.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

func (s *MemcachedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.mcd.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: memcachedExpiration(ttl, s.now()),
	})
}

func (s *MemcachedStore) Delete(ctx context.Context, key string) error {
	err := s.mcd.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

func memcachedExpiration(ttl time.Duration, now time.Time) int32 {
	switch {
	case ttl <= 0:
		return 0
	case ttl < time.Second:
		return 1
	case ttl > memcachedRelativeLimit:
		at := now.Add(ttl).Unix()
		if at > math.MaxInt32 {
			// beyond the protocol's timestamps, keep it until evicted
			return 0
		}
		return int32(at)
	}
	return int32(ttl / time.Second)
}
