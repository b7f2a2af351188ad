package engine

import (
	"time"
)

const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
)

// Inbound chat message, already translated from the platform's update format.
type Message struct {
	ChatID      int64
	ChatType    string
	MessageID   int
	SenderID    int64
	SenderName  string
	SenderIsBot bool
	Text        string
	// zero means "now", according to the engine clock
	At time.Time
}

func (m Message) IsPrivate() bool {
	return m.ChatType == ChatPrivate
}

// A user joining a chat (or being added to it).
type MembershipEvent struct {
	ChatID   int64
	ChatType string
	UserID   int64
	Username string
	IsBot    bool
}

// Decision returned by the content rules for a single message. A nil verdict means the message is clean.
type Verdict struct {
	// name of the rule which matched
	Rule string
	// rule-specific detail, eg the matched keyword or filter
	Detail string
	Delete bool
	// record a strike with Reason
	Strike bool
	Reason string
	// optional notice template; "%s" is replaced with the sender display name
	Notice string
}

// Summary of what processing a single event did.
type Outcome struct {
	// sender was the bot itself or a chat admin; nothing else was evaluated
	Exempt bool
	// "flood", "muted", "bot-account", or the content rule name; empty when clean
	Rule        string
	Deleted     bool
	StrikeCount int
	// escalation applied because this event crossed the strike limit
	Escalated  string
	FloodAct   string
	MutedUntil *time.Time
	Notices    []string
}
