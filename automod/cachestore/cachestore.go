package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Short-lived cache of per-chat values, keyed by namespace and chat ID.
//
// A miss is reported with ok=false and a nil error.
type CacheStore interface {
	Get(ctx context.Context, ns string, chatID int64) ([]byte, bool, error)
	Set(ctx context.Context, ns string, chatID int64, val []byte) error
	Purge(ctx context.Context, ns string, chatID int64) error
}

func cacheKey(ns string, chatID int64) string {
	return fmt.Sprintf("%s/%d", ns, chatID)
}

// Reads and decodes a cached JSON value.
func GetJSON[T any](ctx context.Context, cs CacheStore, ns string, chatID int64) (*T, error) {
	raw, ok, err := cs.Get(ctx, ns, chatID)
	if err != nil || !ok {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding cached %s: %w", ns, err)
	}
	return &out, nil
}

func SetJSON[T any](ctx context.Context, cs CacheStore, ns string, chatID int64, val T) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return cs.Set(ctx, ns, chatID, raw)
}
