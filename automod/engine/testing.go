package engine

import (
	"log/slog"
	"time"

	"github.com/iris-chat/warden/automod/auditlog"
	"github.com/iris-chat/warden/automod/filterstore"
	"github.com/iris-chat/warden/automod/floodstore"
	"github.com/iris-chat/warden/automod/keyword"
	"github.com/iris-chat/warden/automod/platform"
	"github.com/iris-chat/warden/automod/restriction"
	"github.com/iris-chat/warden/automod/settings"
	"github.com/iris-chat/warden/automod/strikestore"

	"github.com/jonboulle/clockwork"
)

const (
	TestBotID  int64 = 1000
	TestChatID int64 = -100123
)

var _ MessageRuleFunc = simpleRule

var testBadWords = []string{"slur"}

func simpleRule(c *MessageContext) error {
	if kw, ok := keyword.ContainsAny(c.Stripped, testBadWords); ok {
		c.Flag(Verdict{
			Rule:   "bad-word",
			Detail: kw,
			Delete: true,
			Strike: true,
			Reason: "bad word",
		})
	}
	return nil
}

// Engine wired entirely to in-memory stores, a mock platform, and a fake clock. Tests reach the concrete types through eng.Platform.(*platform.MockPlatform) and eng.Clock.(*clockwork.FakeClock).
func EngineTestFixture() *Engine {
	return EngineTestFixtureWithRules(RuleSet{MessageRules: []MessageRuleFunc{simpleRule}})
}

func EngineTestFixtureWithRules(rules RuleSet) *Engine {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	mgr := restriction.NewManager(restriction.NewMemStore(), clock, slog.Default())
	eng := &Engine{
		Logger:       slog.Default(),
		Rules:        rules,
		Policies:     settings.NewMemPolicyStore(),
		Strikes:      strikestore.NewMemStrikeStore(),
		Flood:        floodstore.NewDetector(),
		Duplicates:   floodstore.NewDuplicateDetector(),
		Filters:      filterstore.NewMemStore(),
		Matcher:      filterstore.NewMatcher(64),
		Restrictions: mgr,
		Audit:        auditlog.NewMemAuditLog(),
		Platform:     platform.NewMockPlatform(),
		Clock:        clock,
		BotID:        TestBotID,
	}
	mgr.OnAutoUnlock = eng.HandleAutoUnlock
	return eng
}
