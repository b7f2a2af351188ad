package restriction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iris-chat/warden/util/cliutil"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type unlockRecorder struct {
	lk    sync.Mutex
	chats []int64
}

func (u *unlockRecorder) hook(ctx context.Context, chatID int64) {
	u.lk.Lock()
	defer u.lk.Unlock()
	u.chats = append(u.chats, chatID)
}

func (u *unlockRecorder) count() int {
	u.lk.Lock()
	defer u.lk.Unlock()
	return len(u.chats)
}

func testManager(store Store) (*Manager, *clockwork.FakeClock, *unlockRecorder) {
	clock := clockwork.NewFakeClockAt(t0)
	m := NewManager(store, clock, nil)
	rec := &unlockRecorder{}
	m.OnAutoUnlock = rec.hook
	return m, clock, rec
}

func TestMuteLazyExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewMemStore()
	m, clock, _ := testManager(store)

	until, err := m.Mute(ctx, 1, 42, 10*time.Minute)
	assert.NoError(err)
	if assert.NotNil(until) {
		assert.Equal(t0.Add(10*time.Minute), *until)
	}

	clock.Advance(9*time.Minute + 59*time.Second)
	muted, err := m.IsMuted(ctx, 1, 42)
	assert.NoError(err)
	assert.True(muted)

	clock.Advance(2 * time.Second)
	muted, err = m.IsMuted(ctx, 1, 42)
	assert.NoError(err)
	assert.False(muted)

	// the stale stored flag was corrected by the read
	r, err := store.Get(ctx, 1, 42)
	assert.NoError(err)
	assert.False(r.Active)

	// idempotent
	muted, err = m.IsMuted(ctx, 1, 42)
	assert.NoError(err)
	assert.False(muted)
}

func TestMuteIndefiniteAndUnmute(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	m, clock, _ := testManager(NewMemStore())

	until, err := m.Mute(ctx, 1, 42, 0)
	assert.NoError(err)
	assert.Nil(until)

	clock.Advance(24 * 365 * time.Hour)
	muted, err := m.IsMuted(ctx, 1, 42)
	assert.NoError(err)
	assert.True(muted)

	assert.NoError(m.Unmute(ctx, 1, 42))
	muted, err = m.IsMuted(ctx, 1, 42)
	assert.NoError(err)
	assert.False(muted)

	// unknown key and chat-level mute
	muted, err = m.IsMuted(ctx, 2, 42)
	assert.NoError(err)
	assert.False(muted)
	_, err = m.Mute(ctx, 1, ChatLock, time.Minute)
	assert.Error(err)
}

func TestLockAutoUnlock(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	m, clock, rec := testManager(NewMemStore())
	defer m.Close()

	until, err := m.LockChat(ctx, 7, 30*time.Minute)
	assert.NoError(err)
	assert.NotNil(until)
	locked, err := m.IsLocked(ctx, 7)
	assert.NoError(err)
	assert.True(locked)

	clock.Advance(30 * time.Minute)
	m.Drain()
	assert.Equal(1, rec.count())
	locked, err = m.IsLocked(ctx, 7)
	assert.NoError(err)
	assert.False(locked)
}

func TestCloseWaitsForDueUnlock(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		m, clock, rec := testManager(NewMemStore())
		_, err := m.LockChat(ctx, 7, 30*time.Minute)
		assert.NoError(err)
		clock.Advance(30 * time.Minute)
		m.Close()
		if !assert.Equal(1, rec.count(), "iteration %d", i) {
			return
		}
	}
}

func TestCloseStopsFutureTimers(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	m, clock, rec := testManager(NewMemStore())

	_, err := m.LockChat(ctx, 7, 30*time.Minute)
	assert.NoError(err)
	_, err = m.LockChat(ctx, 8, time.Hour)
	assert.NoError(err)
	clock.Advance(30 * time.Minute)
	m.Close()
	assert.Equal(1, rec.count())

	clock.Advance(time.Hour)
	m.Drain()
	assert.Equal(1, rec.count())
	locked, err := m.IsLocked(ctx, 8)
	assert.NoError(err)
	// the stored lock lapsed on its own; only the notice hook is skipped
	assert.False(locked)
}

func TestExplicitUnlockCancelsTimer(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	m, clock, rec := testManager(NewMemStore())
	defer m.Close()

	_, err := m.LockChat(ctx, 7, 30*time.Minute)
	assert.NoError(err)

	clock.Advance(5 * time.Minute)
	assert.NoError(m.UnlockChat(ctx, 7))

	clock.Advance(25 * time.Minute)
	m.Drain()
	assert.Equal(0, rec.count())
}

func TestStaleTimerIsNoop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	m, _, rec := testManager(NewMemStore())

	_, err := m.LockChat(ctx, 7, 30*time.Minute)
	assert.NoError(err)
	r, err := m.Get(ctx, 7, ChatLock)
	assert.NoError(err)
	staleGen := r.Generation

	// re-lock indefinitely, then a timer for the old generation fires anyway
	_, err = m.LockChat(ctx, 7, 0)
	assert.NoError(err)
	m.fireUnlock(ctx, 7, staleGen)
	assert.Equal(0, rec.count())
	locked, err := m.IsLocked(ctx, 7)
	assert.NoError(err)
	assert.True(locked)
}

func TestRelockReplacesTimer(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	m, clock, rec := testManager(NewMemStore())
	defer m.Close()

	_, err := m.LockChat(ctx, 7, 10*time.Minute)
	assert.NoError(err)
	_, err = m.LockChat(ctx, 7, 60*time.Minute)
	assert.NoError(err)

	clock.Advance(10 * time.Minute)
	m.Drain()
	assert.Equal(0, rec.count())
	locked, err := m.IsLocked(ctx, 7)
	assert.NoError(err)
	assert.True(locked)

	clock.Advance(50 * time.Minute)
	m.Drain()
	assert.Equal(1, rec.count())
}

func TestRehydrate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewMemStore()

	// previous process: one lock already past due, one still pending
	past := t0.Add(-time.Minute)
	future := t0.Add(20 * time.Minute)
	assert.NoError(store.Put(ctx, Restriction{ChatID: 1, UserID: ChatLock, Active: true, Until: &past, Generation: 3}))
	assert.NoError(store.Put(ctx, Restriction{ChatID: 2, UserID: ChatLock, Active: true, Until: &future, Generation: 5}))
	assert.NoError(store.Put(ctx, Restriction{ChatID: 3, UserID: ChatLock, Active: true, Generation: 1}))

	m, clock, rec := testManager(store)
	defer m.Close()
	assert.NoError(m.Rehydrate(ctx))
	assert.Equal(1, rec.count())

	clock.Advance(20 * time.Minute)
	m.Drain()
	assert.Equal(2, rec.count())

	locked, err := m.IsLocked(ctx, 3)
	assert.NoError(err)
	assert.True(locked)
}

func TestSweepExpired(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewMemStore()
	m, clock, _ := testManager(store)

	_, err := m.Mute(ctx, 1, 1, time.Minute)
	assert.NoError(err)
	_, err = m.Mute(ctx, 1, 2, time.Hour)
	assert.NoError(err)

	clock.Advance(2 * time.Minute)
	n, err := m.SweepExpired(ctx)
	assert.NoError(err)
	assert.Equal(1, n)

	active, err := store.ListActive(ctx)
	assert.NoError(err)
	assert.Equal(1, len(active))
}

func TestGormStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1)
	if err != nil {
		t.Fatal(err)
	}
	store, err := NewGormStore(db)
	if err != nil {
		t.Fatal(err)
	}

	r, err := store.Get(ctx, 1, 2)
	assert.NoError(err)
	assert.False(r.Active)

	m, clock, _ := testManager(store)
	_, err = m.Mute(ctx, 1, 2, 10*time.Minute)
	assert.NoError(err)
	r, err = store.Get(ctx, 1, 2)
	assert.NoError(err)
	assert.True(r.Active)
	if assert.NotNil(r.Until) {
		assert.True(t0.Add(10 * time.Minute).Equal(*r.Until))
	}

	active, err := store.ListActive(ctx)
	assert.NoError(err)
	assert.Equal(1, len(active))

	clock.Advance(11 * time.Minute)
	muted, err := m.IsMuted(ctx, 1, 2)
	assert.NoError(err)
	assert.False(muted)
	active, err = store.ListActive(ctx)
	assert.NoError(err)
	assert.Empty(active)
}
