package restriction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v4"
)

// Invoked after a timed chat lock is lifted by its timer. Not invoked for explicit unlocks.
type AutoUnlockFunc func(ctx context.Context, chatID int64)

type Manager struct {
	Store  Store
	Clock  clockwork.Clock
	Logger *slog.Logger
	// optional
	OnAutoUnlock AutoUnlockFunc

	keyLocks *xsync.Map[memKey, *sync.Mutex]

	timerLk sync.Mutex
	// current timer per chat
	timers  map[int64]*armedTimer
	// every timer which has neither been stopped nor finished its callback
	pending map[*armedTimer]struct{}
}

type armedTimer struct {
	chatID int64
	due    time.Time
	t      clockwork.Timer
	// closed once the timer is stopped or its callback has returned
	done   chan struct{}
}

func NewManager(store Store, clock clockwork.Clock, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		Store:    store,
		Clock:    clock,
		Logger:   logger.With("system", "restriction"),
		keyLocks: xsync.NewMap[memKey, *sync.Mutex](),
		timers:   make(map[int64]*armedTimer),
		pending:  make(map[*armedTimer]struct{}),
	}
}

func (m *Manager) lockKey(chatID, userID int64) func() {
	mu, _ := m.keyLocks.LoadOrCompute(memKey{chatID, userID}, func() (*sync.Mutex, bool) {
		return &sync.Mutex{}, false
	})
	mu.Lock()
	return mu.Unlock
}

func (m *Manager) untilFrom(d time.Duration) *time.Time {
	if d <= 0 {
		return nil
	}
	until := m.Clock.Now().Add(d)
	return &until
}

// Records a mute. A non-positive duration is indefinite. Returns the expiry (nil when indefinite) for the caller to enforce on the platform.
func (m *Manager) Mute(ctx context.Context, chatID, userID int64, d time.Duration) (*time.Time, error) {
	if userID == ChatLock {
		return nil, fmt.Errorf("mute requires a user")
	}
	unlock := m.lockKey(chatID, userID)
	defer unlock()

	cur, err := m.Store.Get(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	until := m.untilFrom(d)
	err = m.Store.Put(ctx, Restriction{
		ChatID:     chatID,
		UserID:     userID,
		Active:     true,
		Until:      until,
		Generation: cur.Generation + 1,
	})
	if err != nil {
		return nil, err
	}
	return until, nil
}

// Derived read. An expired mute reads as false and the stored flag is cleared as a side effect.
func (m *Manager) IsMuted(ctx context.Context, chatID, userID int64) (bool, error) {
	return m.isLive(ctx, chatID, userID)
}

func (m *Manager) Unmute(ctx context.Context, chatID, userID int64) error {
	unlock := m.lockKey(chatID, userID)
	defer unlock()
	return m.clearLocked(ctx, chatID, userID)
}

// Records a chat lock. With a positive duration a one-shot timer is armed to lift it; any earlier timer for the chat is cancelled.
func (m *Manager) LockChat(ctx context.Context, chatID int64, d time.Duration) (*time.Time, error) {
	unlock := m.lockKey(chatID, ChatLock)
	defer unlock()

	cur, err := m.Store.Get(ctx, chatID, ChatLock)
	if err != nil {
		return nil, err
	}
	gen := cur.Generation + 1
	until := m.untilFrom(d)
	err = m.Store.Put(ctx, Restriction{
		ChatID:     chatID,
		UserID:     ChatLock,
		Active:     true,
		Until:      until,
		Generation: gen,
	})
	if err != nil {
		return nil, err
	}
	m.cancelTimer(chatID)
	if until != nil {
		m.armTimer(chatID, gen, d)
	}
	return until, nil
}

// Lifts a chat lock and cancels any pending auto-unlock.
func (m *Manager) UnlockChat(ctx context.Context, chatID int64) error {
	unlock := m.lockKey(chatID, ChatLock)
	defer unlock()
	m.cancelTimer(chatID)
	return m.clearLocked(ctx, chatID, ChatLock)
}

func (m *Manager) IsLocked(ctx context.Context, chatID int64) (bool, error) {
	return m.isLive(ctx, chatID, ChatLock)
}

// Raw stored restriction, without expiry correction.
func (m *Manager) Get(ctx context.Context, chatID, userID int64) (Restriction, error) {
	return m.Store.Get(ctx, chatID, userID)
}

func (m *Manager) isLive(ctx context.Context, chatID, userID int64) (bool, error) {
	r, err := m.Store.Get(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	now := m.Clock.Now()
	if r.LiveAt(now) {
		return true, nil
	}
	if r.ExpiredAt(now) {
		// lazy expiry; the answer above does not depend on this write succeeding
		unlock := m.lockKey(chatID, userID)
		defer unlock()
		cur, err := m.Store.Get(ctx, chatID, userID)
		if err == nil && cur.ExpiredAt(m.Clock.Now()) {
			if err := m.clearLocked(ctx, chatID, userID); err != nil {
				m.Logger.Warn("failed to clear expired restriction", "chat", chatID, "user", userID, "err", err)
			}
		}
	}
	return false, nil
}

// caller must hold the key lock
func (m *Manager) clearLocked(ctx context.Context, chatID, userID int64) error {
	cur, err := m.Store.Get(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !cur.Active {
		return nil
	}
	return m.Store.Put(ctx, Restriction{
		ChatID:     chatID,
		UserID:     userID,
		Active:     false,
		Generation: cur.Generation + 1,
	})
}

func (m *Manager) armTimer(chatID int64, gen uint64, d time.Duration) {
	m.timerLk.Lock()
	defer m.timerLk.Unlock()
	at := &armedTimer{
		chatID: chatID,
		due:    m.Clock.Now().Add(d),
		done:   make(chan struct{}),
	}
	m.pending[at] = struct{}{}
	m.timers[chatID] = at
	// the clock runs callbacks on their own goroutine
	at.t = m.Clock.AfterFunc(d, func() {
		defer m.finish(at)
		m.fireUnlock(context.Background(), chatID, gen)
	})
}

// caller must hold timerLk
func (m *Manager) retire(at *armedTimer) {
	delete(m.pending, at)
	if m.timers[at.chatID] == at {
		delete(m.timers, at.chatID)
	}
	close(at.done)
}

func (m *Manager) finish(at *armedTimer) {
	m.timerLk.Lock()
	defer m.timerLk.Unlock()
	m.retire(at)
}

func (m *Manager) cancelTimer(chatID int64) {
	m.timerLk.Lock()
	defer m.timerLk.Unlock()
	at, ok := m.timers[chatID]
	if !ok {
		return
	}
	delete(m.timers, chatID)
	// a false Stop means the callback already started; it retires the timer itself
	if at.t.Stop() {
		m.retire(at)
	}
}

func (m *Manager) fireUnlock(ctx context.Context, chatID int64, gen uint64) {
	fired := func() bool {
		unlock := m.lockKey(chatID, ChatLock)
		defer unlock()

		cur, err := m.Store.Get(ctx, chatID, ChatLock)
		if err != nil {
			m.Logger.Error("auto-unlock read failed", "chat", chatID, "err", err)
			return false
		}
		if !cur.Active || cur.Generation != gen {
			m.Logger.Debug("stale auto-unlock timer", "chat", chatID, "gen", gen, "current", cur.Generation)
			autoUnlockCount.WithLabelValues("stale").Inc()
			return false
		}
		if err := m.clearLocked(ctx, chatID, ChatLock); err != nil {
			m.Logger.Error("auto-unlock failed", "chat", chatID, "err", err)
			autoUnlockCount.WithLabelValues("error").Inc()
			return false
		}
		return true
	}()
	if !fired {
		return
	}
	autoUnlockCount.WithLabelValues("unlocked").Inc()
	m.Logger.Info("chat auto-unlocked", "chat", chatID)
	if m.OnAutoUnlock != nil {
		m.OnAutoUnlock(ctx, chatID)
	}
}

// Re-arms timers for timed chat locks after a restart, and lifts locks whose time already passed while the process was down.
func (m *Manager) Rehydrate(ctx context.Context) error {
	active, err := m.Store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing restrictions: %w", err)
	}
	now := m.Clock.Now()
	for _, r := range active {
		if r.UserID != ChatLock || r.Until == nil {
			continue
		}
		if r.ExpiredAt(now) {
			m.fireUnlock(ctx, r.ChatID, r.Generation)
			continue
		}
		m.armTimer(r.ChatID, r.Generation, r.Until.Sub(now))
	}
	return nil
}

// Clears stored flags of expired mutes and lifts expired chat locks which have no armed timer. Returns the number of restrictions cleared.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	active, err := m.Store.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	now := m.Clock.Now()
	cleared := 0
	for _, r := range active {
		if !r.ExpiredAt(now) {
			continue
		}
		if r.UserID == ChatLock {
			m.timerLk.Lock()
			_, armed := m.timers[r.ChatID]
			m.timerLk.Unlock()
			if armed {
				continue
			}
			m.fireUnlock(ctx, r.ChatID, r.Generation)
			cleared++
			continue
		}
		// re-uses the lazy expiry path
		if _, err := m.isLive(ctx, r.ChatID, r.UserID); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, nil
}

// Waits until every timer due at the current clock time has finished its callback. Timers still in the future are not waited for.
func (m *Manager) Drain() {
	now := m.Clock.Now()
	m.timerLk.Lock()
	var due []chan struct{}
	for at := range m.pending {
		if !at.due.After(now) {
			due = append(due, at.done)
		}
	}
	m.timerLk.Unlock()
	for _, done := range due {
		<-done
	}
}

// Stops all pending timers and waits for callbacks which had already started.
func (m *Manager) Close() {
	m.timerLk.Lock()
	var running []chan struct{}
	for at := range m.pending {
		if at.t.Stop() {
			m.retire(at)
			continue
		}
		running = append(running, at.done)
	}
	m.timerLk.Unlock()
	for _, done := range running {
		<-done
	}
}
