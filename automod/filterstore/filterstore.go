package filterstore

import (
	"context"
	"time"
)

type Store interface {
	// Persists a validated filter, assigning ID. Creation order is ID order.
	Add(ctx context.Context, f Filter) (Filter, error)
	// Deletes filters in a chat with the given kind and pattern. Returns the number removed.
	Remove(ctx context.Context, chatID int64, kind Kind, pattern string) (int, error)
	// All stored filters for a chat, including expired ones, in creation order.
	List(ctx context.Context, chatID int64) ([]Filter, error)
	// Filters active at "now", in creation order.
	ListActive(ctx context.Context, chatID int64, now time.Time) ([]Filter, error)
	// Hard-deletes filters (in any chat) which expired at or before "now".
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

func activeOnly(all []Filter, now time.Time) []Filter {
	out := make([]Filter, 0, len(all))
	for _, f := range all {
		if f.ActiveAt(now) {
			out = append(out, f)
		}
	}
	return out
}
