// Time-bounded restrictions: user mutes and chat locks.
//
// Liveness is always derived from the stored "until" timestamp at read time; the stored Active flag alone is never trusted. Chat locks with a duration are lifted by a one-shot timer keyed to a per-chat generation number, so an explicit unlock (or a newer lock) turns any pending timer in to a no-op.
package restriction

import (
	"context"
	"time"
)

// UserID value used for chat-wide locks.
const ChatLock int64 = 0

type Restriction struct {
	ChatID int64
	UserID int64
	Active bool
	// nil means indefinite
	Until *time.Time
	// bumped on every change; a timer armed for an older generation is stale
	Generation uint64
}

func (r Restriction) LiveAt(now time.Time) bool {
	return r.Active && (r.Until == nil || r.Until.After(now))
}

// Expired reports a restriction which is still flagged active but whose time has passed.
func (r Restriction) ExpiredAt(now time.Time) bool {
	return r.Active && r.Until != nil && !r.Until.After(now)
}

type Store interface {
	// Unknown keys return an inactive zero restriction.
	Get(ctx context.Context, chatID, userID int64) (Restriction, error)
	Put(ctx context.Context, r Restriction) error
	// All restrictions currently flagged active, including ones whose time has passed.
	ListActive(ctx context.Context) ([]Restriction, error)
}
