package maintenance

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/iris-chat/warden/automod/auditlog"
	"github.com/iris-chat/warden/automod/engine"
	"github.com/iris-chat/warden/automod/filterstore"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestValidateSchedule(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(ValidateSchedule(DefaultSchedule))
	assert.NoError(ValidateSchedule("0 3 * * *"))
	assert.Error(ValidateSchedule("every day"))
	assert.Error(ValidateSchedule("* * * * * *"))
}

func TestRunOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := engine.EngineTestFixture()
	clock := eng.Clock.(*clockwork.FakeClock)
	chatID := engine.TestChatID
	s := Sweeper{Engine: eng, Logger: slog.Default()}

	// default retention is 30 days
	assert.NoError(eng.Audit.Append(ctx, auditlog.Entry{ChatID: chatID, ActorID: 1, ActionType: auditlog.ActionWarn, At: clock.Now().Add(-40 * 24 * time.Hour)}))
	assert.NoError(eng.Audit.Append(ctx, auditlog.Entry{ChatID: chatID, ActorID: 1, ActionType: auditlog.ActionWarn, At: clock.Now()}))

	f, err := filterstore.Parse(chatID, "crypto duration:1m", clock.Now())
	assert.NoError(err)
	_, err = eng.Filters.Add(ctx, f)
	assert.NoError(err)
	_, err = eng.Restrictions.Mute(ctx, chatID, 501, time.Minute)
	assert.NoError(err)
	eng.Flood.Observe(chatID, 501, clock.Now(), 5, 5*time.Second)
	eng.Duplicates.Observe(chatID, 501, "hi", clock.Now())

	clock.Advance(2 * time.Hour)
	rep, err := s.RunOnce(ctx)
	assert.NoError(err)
	assert.Equal(int64(1), rep.AuditPurged)
	assert.Equal(1, rep.FiltersPurged)
	assert.Equal(1, rep.RestrictionsSwept)
	assert.Equal(1, rep.FloodWindowsSwept)
	assert.Equal(1, rep.DuplicateKeysSwept)

	recent, err := eng.Audit.Recent(ctx, chatID, 10)
	assert.NoError(err)
	assert.Len(recent, 1)

	// second run has nothing left to do
	rep, err = s.RunOnce(ctx)
	assert.NoError(err)
	assert.Equal(Report{}, rep)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	assert := assert.New(t)
	s := Sweeper{Engine: engine.EngineTestFixture(), Logger: slog.Default()}

	_, err := s.Start(context.Background(), "nope")
	assert.Error(err)

	sched, err := s.Start(context.Background(), DefaultSchedule)
	assert.NoError(err)
	assert.Len(sched.Jobs(), 1)
	assert.NoError(sched.Shutdown())
}
