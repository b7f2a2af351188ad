// Narrow interface to the messaging platform which delivers events and executes moderation actions.
package platform

import (
	"context"
	"fmt"
	"time"
)

type Member struct {
	UserID   int64
	Username string
	IsBot    bool
}

type Platform interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	// Prevents the user from sending messages. A nil "until" is indefinite.
	RestrictUser(ctx context.Context, chatID, userID int64, until *time.Time) error
	LiftRestriction(ctx context.Context, chatID, userID int64) error
	BanUser(ctx context.Context, chatID, userID int64) error
	UnbanUser(ctx context.Context, chatID, userID int64) error
	SendNotice(ctx context.Context, chatID int64, text string) error
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	// Toggles whether regular members may send messages.
	SetChatLocked(ctx context.Context, chatID int64, locked bool) error
	ListAdmins(ctx context.Context, chatID int64) ([]Member, error)
}

// Removes a user while allowing them to rejoin: ban, then immediately unban.
func Kick(ctx context.Context, p Platform, chatID, userID int64) error {
	if err := p.BanUser(ctx, chatID, userID); err != nil {
		return err
	}
	if err := p.UnbanUser(ctx, chatID, userID); err != nil {
		return fmt.Errorf("kicked user left banned: %w", err)
	}
	return nil
}
