// Append-only log of moderation actions, automatic and manual.
package auditlog

import (
	"context"
	"time"
)

const (
	ActionWarn        = "warn"
	ActionResetWarns  = "reset_warns"
	ActionMute        = "mute"
	ActionUnmute      = "unmute"
	ActionBan         = "ban"
	ActionUnban       = "unban"
	ActionKick        = "kick"
	ActionLock        = "lock"
	ActionUnlock      = "unlock"
	ActionAddFilter   = "add_filter"
	ActionRemFilter   = "remove_filter"
	ActionConfigure   = "configure"
	ActionImport      = "import_settings"
	ActionAutoDelete  = "auto_delete"
	ActionAutoWarn    = "auto_warn"
	ActionAutoMute    = "auto_mute"
	ActionAutoKick    = "auto_kick"
	ActionAutoBan     = "auto_ban"
	ActionAutoUnlock  = "auto_unlock"
	ActionAutoBotBan  = "auto_bot_ban"
	ActionFloodDetect = "auto_flood"
)

type Entry struct {
	ID         uint64
	ChatID     int64
	ActorID    int64
	ActionType string
	// nil for chat-wide actions
	TargetID *int64
	Reason   string
	At       time.Time
}

type SummaryKey struct {
	ActorID    int64
	ActionType string
}

type AuditLog interface {
	Append(ctx context.Context, e Entry) error
	// Count of entries per (actor, action) in a chat.
	Summarize(ctx context.Context, chatID int64) (map[SummaryKey]int, error)
	// Distinct actors with any entry in a chat, ascending.
	ListActors(ctx context.Context, chatID int64) ([]int64, error)
	// Most recent entries first.
	Recent(ctx context.Context, chatID int64, limit int) ([]Entry, error)
	// Deletes entries older than "cutoff". Retention only; never used on the message path.
	PurgeBefore(ctx context.Context, chatID int64, cutoff time.Time) (int64, error)
	// Chats with at least one entry.
	Chats(ctx context.Context) ([]int64, error)
}

func Target(id int64) *int64 {
	return &id
}
