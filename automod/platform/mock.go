package platform

import (
	"context"
	"sync"
	"time"
)

type Call struct {
	Op        string
	ChatID    int64
	UserID    int64
	MessageID int
	Text      string
	Until     *time.Time
	Locked    bool
}

// In-memory Platform which records every call. Intended for tests and dry runs.
type MockPlatform struct {
	lk     sync.Mutex
	Calls  []Call
	Admins map[int64]map[int64]bool
	Bots   map[int64]bool
	// per-operation errors to return instead of succeeding
	Fail map[string]error
}

var _ Platform = (*MockPlatform)(nil)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		Admins: make(map[int64]map[int64]bool),
		Bots:   make(map[int64]bool),
		Fail:   make(map[string]error),
	}
}

func (m *MockPlatform) AddAdmin(chatID, userID int64) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.Admins[chatID] == nil {
		m.Admins[chatID] = make(map[int64]bool)
	}
	m.Admins[chatID][userID] = true
}

func (m *MockPlatform) record(c Call) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.Calls = append(m.Calls, c)
	return m.Fail[c.Op]
}

// Calls with the given operation name, in order.
func (m *MockPlatform) CallsFor(op string) []Call {
	m.lk.Lock()
	defer m.lk.Unlock()
	var out []Call
	for _, c := range m.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockPlatform) Reset() {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.Calls = nil
}

func (m *MockPlatform) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return m.record(Call{Op: "delete_message", ChatID: chatID, MessageID: messageID})
}

func (m *MockPlatform) RestrictUser(ctx context.Context, chatID, userID int64, until *time.Time) error {
	return m.record(Call{Op: "restrict_user", ChatID: chatID, UserID: userID, Until: until})
}

func (m *MockPlatform) LiftRestriction(ctx context.Context, chatID, userID int64) error {
	return m.record(Call{Op: "lift_restriction", ChatID: chatID, UserID: userID})
}

func (m *MockPlatform) BanUser(ctx context.Context, chatID, userID int64) error {
	return m.record(Call{Op: "ban_user", ChatID: chatID, UserID: userID})
}

func (m *MockPlatform) UnbanUser(ctx context.Context, chatID, userID int64) error {
	return m.record(Call{Op: "unban_user", ChatID: chatID, UserID: userID})
}

func (m *MockPlatform) SendNotice(ctx context.Context, chatID int64, text string) error {
	return m.record(Call{Op: "send_notice", ChatID: chatID, Text: text})
}

func (m *MockPlatform) SetChatLocked(ctx context.Context, chatID int64, locked bool) error {
	return m.record(Call{Op: "set_chat_locked", ChatID: chatID, Locked: locked})
}

func (m *MockPlatform) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if err := m.Fail["is_chat_admin"]; err != nil {
		return false, err
	}
	return m.Admins[chatID][userID], nil
}

func (m *MockPlatform) ListAdmins(ctx context.Context, chatID int64) ([]Member, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if err := m.Fail["list_admins"]; err != nil {
		return nil, err
	}
	var out []Member
	for uid := range m.Admins[chatID] {
		out = append(out, Member{UserID: uid, IsBot: m.Bots[uid]})
	}
	return out, nil
}
