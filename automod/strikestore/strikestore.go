// Strike ledger: per (chat, user) violation counters with the most recent reason.
//
// Includes an interface and implementations using in-process memory, redis, and a SQL database (via gorm). Every implementation increments atomically per key, so concurrent violations by the same user never lose a strike.
package strikestore

import (
	"context"
)

type Record struct {
	ChatID     int64
	UserID     int64
	Count      int
	LastReason string
}

type StrikeStore interface {
	// Atomically increments the strike count and returns the new count. An empty reason leaves the previous reason in place.
	RecordStrike(ctx context.Context, chatID, userID int64, reason string) (int, error)
	// Sets the count to zero. The last reason is kept for moderator context.
	ResetStrikes(ctx context.Context, chatID, userID int64) error
	// Unknown keys read as zero.
	GetStrikes(ctx context.Context, chatID, userID int64) (int, error)
	GetRecord(ctx context.Context, chatID, userID int64) (Record, error)
}
