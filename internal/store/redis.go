package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a shared cache backed by Redis with a small local TinyLFU tier.
type RedisStore struct {
	Data   *cache.Cache
	Prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(ctx context.Context, redisURL string, localTTL time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return NewRedisStoreWithCache(cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, localTTL),
	})), nil
}

// NewRedisStoreWithCache wraps an already configured cache.
func NewRedisStoreWithCache(data *cache.Cache) *RedisStore {
	return &RedisStore{Data: data, Prefix: "poseidon/"}
}

func (s *RedisStore) key(key string) string {
	return s.Prefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	var val string
	err := s.Data.Get(ctx, s.key(key), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		// negative ttl means no expiry, zero would be the library default
		ttl = -1
	}
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   s.key(key),
		Value: string(value),
		TTL:   ttl,
	})
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	err := s.Data.Delete(ctx, s.key(key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
