package settings

import (
	"context"
	"log/slog"

	"github.com/iris-chat/warden/automod/cachestore"
	"github.com/iris-chat/warden/automod/policy"
)

const policyCacheNamespace = "policy"

// Read-through cache in front of another PolicyStore. Writes go to the inner store and purge the cache entry.
type CachedPolicyStore struct {
	Inner PolicyStore
	Cache cachestore.CacheStore
}

var _ PolicyStore = (*CachedPolicyStore)(nil)

func (s *CachedPolicyStore) Get(ctx context.Context, chatID int64) (policy.ChatPolicy, error) {
	cached, err := cachestore.GetJSON[policy.ChatPolicy](ctx, s.Cache, policyCacheNamespace, chatID)
	if err != nil {
		// a broken cache should not stop moderation
		slog.Warn("policy cache read failed", "chat", chatID, "err", err)
	} else if cached != nil {
		return *cached, nil
	}
	p, err := s.Inner.Get(ctx, chatID)
	if err != nil {
		return p, err
	}
	if err := cachestore.SetJSON(ctx, s.Cache, policyCacheNamespace, chatID, p); err != nil {
		slog.Warn("policy cache write failed", "chat", chatID, "err", err)
	}
	return p, nil
}

func (s *CachedPolicyStore) Put(ctx context.Context, chatID int64, p policy.ChatPolicy) error {
	if err := s.Inner.Put(ctx, chatID, p); err != nil {
		return err
	}
	return s.Cache.Purge(ctx, policyCacheNamespace, chatID)
}
