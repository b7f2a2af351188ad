package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemCacheStore struct {
	Data *expirable.LRU[string, []byte]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		Data: expirable.NewLRU[string, []byte](capacity, nil, ttl),
	}
}

func (s *MemCacheStore) Get(ctx context.Context, ns string, chatID int64) ([]byte, bool, error) {
	v, ok := s.Data.Get(cacheKey(ns, chatID))
	return v, ok, nil
}

func (s *MemCacheStore) Set(ctx context.Context, ns string, chatID int64, val []byte) error {
	s.Data.Add(cacheKey(ns, chatID), val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, ns string, chatID int64) error {
	s.Data.Remove(cacheKey(ns, chatID))
	return nil
}
