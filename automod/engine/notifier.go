package engine

import (
	"context"
)

// Interface for a type that can handle sending notifications
type Notifier interface {
	SendEscalation(ctx context.Context, chatID, userID int64, name string, out *Outcome) error
}
