package auditlog

import (
	"context"
	"testing"
	"time"

	"github.com/iris-chat/warden/util/cliutil"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testAuditLog(t *testing.T, l AuditLog) {
	assert := assert.New(t)
	ctx := context.Background()

	summary, err := l.Summarize(ctx, -1)
	assert.NoError(err)
	assert.Empty(summary)
	actors, err := l.ListActors(ctx, -1)
	assert.NoError(err)
	assert.Empty(actors)

	entries := []Entry{
		{ChatID: -1, ActorID: 20, ActionType: ActionWarn, TargetID: Target(5), Reason: "spam", At: t0},
		{ChatID: -1, ActorID: 20, ActionType: ActionWarn, TargetID: Target(6), At: t0.Add(time.Hour)},
		{ChatID: -1, ActorID: 10, ActionType: ActionLock, At: t0.Add(2 * time.Hour)},
		{ChatID: -1, ActorID: 20, ActionType: ActionMute, TargetID: Target(5), At: t0.Add(3 * time.Hour)},
		{ChatID: -2, ActorID: 30, ActionType: ActionBan, TargetID: Target(9), At: t0},
	}
	for _, e := range entries {
		assert.NoError(l.Append(ctx, e))
	}

	summary, err = l.Summarize(ctx, -1)
	assert.NoError(err)
	assert.Equal(map[SummaryKey]int{
		{ActorID: 20, ActionType: ActionWarn}: 2,
		{ActorID: 10, ActionType: ActionLock}: 1,
		{ActorID: 20, ActionType: ActionMute}: 1,
	}, summary)

	actors, err = l.ListActors(ctx, -1)
	assert.NoError(err)
	assert.Equal([]int64{10, 20}, actors)

	recent, err := l.Recent(ctx, -1, 2)
	assert.NoError(err)
	if assert.Equal(2, len(recent)) {
		assert.Equal(ActionMute, recent[0].ActionType)
		assert.Equal(ActionLock, recent[1].ActionType)
		if assert.NotNil(recent[0].TargetID) {
			assert.Equal(int64(5), *recent[0].TargetID)
		}
	}

	chats, err := l.Chats(ctx)
	assert.NoError(err)
	assert.Equal([]int64{-2, -1}, chats)

	n, err := l.PurgeBefore(ctx, -1, t0.Add(90*time.Minute))
	assert.NoError(err)
	assert.Equal(int64(2), n)
	actors, err = l.ListActors(ctx, -1)
	assert.NoError(err)
	assert.Equal([]int64{10, 20}, actors)
	summary, err = l.Summarize(ctx, -1)
	assert.NoError(err)
	assert.Equal(2, len(summary))

	// other chats untouched
	summary, err = l.Summarize(ctx, -2)
	assert.NoError(err)
	assert.Equal(1, summary[SummaryKey{ActorID: 30, ActionType: ActionBan}])
}

func TestMemAuditLog(t *testing.T) {
	testAuditLog(t, NewMemAuditLog())
}

func TestGormAuditLog(t *testing.T) {
	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1)
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewGormAuditLog(db)
	if err != nil {
		t.Fatal(err)
	}
	testAuditLog(t, l)
}
