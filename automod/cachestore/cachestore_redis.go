package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// Two-tier cache: a small in-process TinyLFU in front of a shared redis.
//
// Because the local tier is per-process, a purge from one replica can leave a stale local copy on others for up to the local TTL.
type RedisCacheStore struct {
	Data     *cache.Cache
	TTL      time.Duration
	localTTL time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(rdb *redis.Client, ttl time.Duration) *RedisCacheStore {
	localTTL := ttl
	if localTTL > 10*time.Second {
		localTTL = 10 * time.Second
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, localTTL),
	})
	return &RedisCacheStore{
		Data:     data,
		TTL:      ttl,
		localTTL: localTTL,
	}
}

func redisCacheKey(ns string, chatID int64) string {
	return "warden/cache/" + cacheKey(ns, chatID)
}

func (s *RedisCacheStore) Get(ctx context.Context, ns string, chatID int64) ([]byte, bool, error) {
	var val []byte
	err := s.Data.Get(ctx, redisCacheKey(ns, chatID), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, ns string, chatID int64, val []byte) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(ns, chatID),
		Value: val,
		TTL:   s.TTL,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, ns string, chatID int64) error {
	err := s.Data.Delete(ctx, redisCacheKey(ns, chatID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
