package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iris-chat/warden/automod/auditlog"
	"github.com/iris-chat/warden/automod/moderr"
	"github.com/iris-chat/warden/automod/platform"
	"github.com/iris-chat/warden/automod/policy"

	"github.com/stretchr/testify/assert"
)

func adminFixture() (*Engine, *platform.MockPlatform) {
	eng := EngineTestFixture()
	mock := mockOf(eng)
	mock.AddAdmin(TestChatID, mod)
	return eng, mock
}

func TestAdminPermissions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := adminFixture()

	_, err := eng.RecordManualWarn(ctx, alice, TestChatID, 502, "s")
	assert.ErrorIs(err, moderr.ErrPermissionDenied)
	_, err = eng.AddFilter(ctx, alice, TestChatID, "spam")
	assert.ErrorIs(err, moderr.ErrPermissionDenied)
	_, err = eng.ConfigurePolicy(ctx, alice, TestChatID, func(p *policy.ChatPolicy) { p.StrikeLimit = 10 })
	assert.ErrorIs(err, moderr.ErrPermissionDenied)

	// admins and the bot are protected targets
	mock.AddAdmin(TestChatID, 778)
	_, err = eng.RecordManualWarn(ctx, mod, TestChatID, 778, "s")
	assert.True(moderr.IsValidation(err))
	err = eng.BanUser(ctx, mod, TestChatID, TestBotID, "")
	assert.True(moderr.IsValidation(err))
	assert.Empty(mock.CallsFor("ban_user"))

	actors, err := eng.Audit.ListActors(ctx, TestChatID)
	assert.NoError(err)
	assert.Empty(actors)
}

func TestManualWarnEscalation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := adminFixture()

	res, err := eng.RecordManualWarn(ctx, mod, TestChatID, alice, "s")
	assert.NoError(err)
	assert.Equal(1, res.Count)
	assert.Equal(3, res.Limit)
	rec, err := eng.GetWarns(ctx, mod, TestChatID, alice)
	assert.NoError(err)
	assert.Equal("Spamming/Flood", rec.LastReason)

	_, err = eng.RecordManualWarn(ctx, mod, TestChatID, alice, "free text reason")
	assert.NoError(err)
	res, err = eng.RecordManualWarn(ctx, mod, TestChatID, alice, "a")
	assert.NoError(err)
	assert.Equal(3, res.Count)
	assert.Equal(policy.ActionBan, res.Escalated)
	assert.Len(mock.CallsFor("ban_user"), 1)

	assert.NoError(eng.ResetWarns(ctx, mod, TestChatID, alice))
	rec, err = eng.GetWarns(ctx, mod, TestChatID, alice)
	assert.NoError(err)
	assert.Equal(0, rec.Count)
	assert.Equal("Advertising/Links", rec.LastReason)

	summary, err := eng.GetAuditSummary(ctx, mod, TestChatID)
	assert.NoError(err)
	assert.Equal(3, summary[auditlog.SummaryKey{ActorID: mod, ActionType: auditlog.ActionWarn}])
	assert.Equal(1, summary[auditlog.SummaryKey{ActorID: mod, ActionType: auditlog.ActionResetWarns}])
	assert.Equal(1, summary[auditlog.SummaryKey{ActorID: TestBotID, ActionType: auditlog.ActionAutoBan}])
}

func TestMuteUnmute(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := adminFixture()

	until, err := eng.MuteUser(ctx, mod, TestChatID, alice, 0, "cool off")
	assert.NoError(err)
	assert.Nil(until)
	muted, err := eng.Restrictions.IsMuted(ctx, TestChatID, alice)
	assert.NoError(err)
	assert.True(muted)

	clockOf(eng).Advance(365 * 24 * time.Hour)
	muted, err = eng.Restrictions.IsMuted(ctx, TestChatID, alice)
	assert.NoError(err)
	assert.True(muted)

	assert.NoError(eng.UnmuteUser(ctx, mod, TestChatID, alice))
	muted, err = eng.Restrictions.IsMuted(ctx, TestChatID, alice)
	assert.NoError(err)
	assert.False(muted)
	assert.Len(mock.CallsFor("restrict_user"), 1)
	assert.Len(mock.CallsFor("lift_restriction"), 1)
}

func TestMuteEnforcementFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := adminFixture()
	mock.Fail["restrict_user"] = errors.New("CHAT_ADMIN_REQUIRED")

	_, err := eng.MuteUser(ctx, mod, TestChatID, alice, 10*time.Minute, "")
	var ee *moderr.EnforcementError
	assert.True(errors.As(err, &ee))

	// the ledger is kept, so the engine still deletes the user's messages
	muted, err := eng.Restrictions.IsMuted(ctx, TestChatID, alice)
	assert.NoError(err)
	assert.True(muted)
}

func TestKickAndUnban(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := adminFixture()

	assert.NoError(eng.KickUser(ctx, mod, TestChatID, alice, "bye"))
	calls := mock.Calls
	if assert.Len(calls, 2) {
		assert.Equal("ban_user", calls[0].Op)
		assert.Equal("unban_user", calls[1].Op)
	}
	assert.NoError(eng.UnbanUser(ctx, mod, TestChatID, alice))
	assert.Len(mock.CallsFor("unban_user"), 2)
}

func TestLockUnlockNoLateNotice(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := adminFixture()
	clock := clockOf(eng)

	until, err := eng.LockChat(ctx, mod, TestChatID, 30*time.Minute)
	assert.NoError(err)
	assert.NotNil(until)

	clock.Advance(5 * time.Minute)
	assert.NoError(eng.UnlockChat(ctx, mod, TestChatID))

	clock.Advance(30 * time.Minute)
	eng.Restrictions.Drain()
	assert.Empty(mock.CallsFor("send_notice"))
	assert.Len(mock.CallsFor("set_chat_locked"), 2)

	summary, err := eng.Audit.Summarize(ctx, TestChatID)
	assert.NoError(err)
	assert.Equal(0, summary[auditlog.SummaryKey{ActorID: TestBotID, ActionType: auditlog.ActionAutoUnlock}])
}

func TestFilterAdmin(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := adminFixture()

	_, err := eng.AddFilter(ctx, mod, TestChatID, "regex:(")
	assert.True(moderr.IsValidation(err))
	filters, err := eng.ListFilters(ctx, mod, TestChatID)
	assert.NoError(err)
	assert.Empty(filters)

	_, err = eng.AddFilter(ctx, mod, TestChatID, "crypto duration:10m")
	assert.NoError(err)
	_, err = eng.AddFilter(ctx, mod, TestChatID, "script:cyrillic")
	assert.NoError(err)
	filters, err = eng.ListFilters(ctx, mod, TestChatID)
	assert.NoError(err)
	assert.Len(filters, 2)

	n, err := eng.RemoveFilter(ctx, mod, TestChatID, "script:cyrillic")
	assert.NoError(err)
	assert.Equal(1, n)
	n, err = eng.RemoveFilter(ctx, mod, TestChatID, "nothing")
	assert.NoError(err)
	assert.Equal(0, n)
}

func TestConfigurePolicy(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := adminFixture()

	_, err := eng.ConfigurePolicy(ctx, mod, TestChatID, func(p *policy.ChatPolicy) { p.StrikeLimit = 0 })
	assert.True(moderr.IsValidation(err))
	cur, err := eng.Policies.Get(ctx, TestChatID)
	assert.NoError(err)
	assert.Equal(3, cur.StrikeLimit)

	next, err := eng.ConfigurePolicy(ctx, mod, TestChatID, func(p *policy.ChatPolicy) {
		p.StrikeLimit = 5
		p.EscalationAction = policy.ActionMute
		p.EscalationMuteMinutes = 60
	})
	assert.NoError(err)
	assert.Equal(5, next.StrikeLimit)
	cur, err = eng.Policies.Get(ctx, TestChatID)
	assert.NoError(err)
	assert.Equal(next, cur)
}

func TestInactiveAdmins(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := adminFixture()
	mock.AddAdmin(TestChatID, 778)
	mock.AddAdmin(TestChatID, 779)
	mock.AddAdmin(TestChatID, TestBotID)
	mock.Bots[779] = true

	_, err := eng.MuteUser(ctx, mod, TestChatID, alice, time.Minute, "")
	assert.NoError(err)

	inactive, err := eng.InactiveAdmins(ctx, mod, TestChatID)
	assert.NoError(err)
	if assert.Len(inactive, 1) {
		assert.Equal(int64(778), inactive[0].UserID)
	}
}

func TestExportImportSettings(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := adminFixture()
	other := int64(-100999)
	mockOf(eng).AddAdmin(other, mod)

	_, err := eng.ConfigurePolicy(ctx, mod, TestChatID, func(p *policy.ChatPolicy) { p.FloodThreshold = 8 })
	assert.NoError(err)
	_, err = eng.AddFilter(ctx, mod, TestChatID, "regex:free\\s+money")
	assert.NoError(err)

	doc, err := eng.ExportSettings(ctx, mod, TestChatID)
	assert.NoError(err)
	assert.NoError(eng.ImportSettings(ctx, mod, other, doc))
	// importing twice does not duplicate filters
	assert.NoError(eng.ImportSettings(ctx, mod, other, doc))

	pol, err := eng.Policies.Get(ctx, other)
	assert.NoError(err)
	assert.Equal(8, pol.FloodThreshold)
	filters, err := eng.Filters.List(ctx, other)
	assert.NoError(err)
	if assert.Len(filters, 1) {
		assert.Equal("regex:free\\s+money", filters[0].Spec())
	}

	bad := []byte(`{"version":1,"policy":{"strike_limit":3,"escalation_action":"ban","flood_threshold":5,"flood_timeframe_seconds":5,"flood_action":"mute","retention_days":30},"filters":["regex:("]}`)
	err = eng.ImportSettings(ctx, mod, other, bad)
	assert.True(moderr.IsValidation(err))
	pol, err = eng.Policies.Get(ctx, other)
	assert.NoError(err)
	assert.Equal(8, pol.FloodThreshold)
}

func TestManualAndAutomaticEscalationAgree(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := adminFixture()
	setPolicy(t, eng, func(p *policy.ChatPolicy) {
		p.StrikeLimit = 2
		p.EscalationAction = policy.ActionMute
		p.EscalationMuteMinutes = 60
	})
	now := eng.Clock.Now()

	_, err := eng.RecordManualWarn(ctx, mod, TestChatID, alice, "u")
	assert.NoError(err)
	res, err := eng.RecordManualWarn(ctx, mod, TestChatID, alice, "u")
	assert.NoError(err)
	assert.Equal(policy.ActionMute, res.Escalated)
	if assert.NotNil(res.MutedUntil) {
		assert.Equal(now.Add(60*time.Minute), *res.MutedUntil)
	}
	notices := mock.CallsFor("send_notice")
	if assert.Len(notices, 3) {
		assert.Equal("🔇 user 501 has been muted for 60 minutes (strike limit reached).", notices[2].Text)
	}

	// the same crossing reached by automatic strikes
	const bob int64 = 502
	mock.Reset()
	for i := 0; i < 2; i++ {
		_, err = eng.ProcessMessage(ctx, testMessage(eng, bob, "a slur"))
		assert.NoError(err)
	}
	muted, err := eng.Restrictions.IsMuted(ctx, TestChatID, bob)
	assert.NoError(err)
	assert.True(muted)
	assert.Len(mock.CallsFor("restrict_user"), 1)
	notices = mock.CallsFor("send_notice")
	if assert.NotEmpty(notices) {
		assert.Equal("🔇 alice has been muted for 60 minutes (strike limit reached).", notices[len(notices)-1].Text)
	}

	summary, err := eng.Audit.Summarize(ctx, TestChatID)
	assert.NoError(err)
	assert.Equal(2, summary[auditlog.SummaryKey{ActorID: TestBotID, ActionType: auditlog.ActionAutoMute}])
}

func TestRecentActions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := adminFixture()

	assert.NoError(eng.BanUser(ctx, mod, TestChatID, alice, "raid"))
	clockOf(eng).Advance(time.Minute)
	assert.NoError(eng.UnbanUser(ctx, mod, TestChatID, alice))

	recent, err := eng.RecentActions(ctx, mod, TestChatID, 10)
	assert.NoError(err)
	if assert.Len(recent, 2) {
		assert.Equal(auditlog.ActionUnban, recent[0].ActionType)
		assert.Equal(auditlog.ActionBan, recent[1].ActionType)
		assert.Equal("raid", recent[1].Reason)
	}

	_, err = eng.RecentActions(ctx, mod, TestChatID, 0)
	assert.True(moderr.IsValidation(err))
	_, err = eng.RecentActions(ctx, alice, TestChatID, 10)
	assert.ErrorIs(err, moderr.ErrPermissionDenied)
}
