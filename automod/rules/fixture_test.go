package rules

import (
	"context"
	"time"

	"github.com/iris-chat/warden/automod"
	"github.com/iris-chat/warden/automod/engine"
	"github.com/iris-chat/warden/automod/platform"

	"github.com/jonboulle/clockwork"
)

const (
	chatID int64 = engine.TestChatID
	alice  int64 = 501
)

func engineFixture() *automod.Engine {
	return engine.EngineTestFixtureWithRules(DefaultRules())
}

func evaluate(eng *automod.Engine, text string) automod.Verdict {
	v, err := eng.Evaluate(context.Background(), chatID, alice, text)
	if err != nil {
		panic(err)
	}
	return v
}

func message(text string, at time.Time) automod.Message {
	return automod.Message{
		ChatID:     chatID,
		ChatType:   automod.ChatSupergroup,
		MessageID:  7,
		SenderID:   alice,
		SenderName: "alice",
		Text:       text,
		At:         at,
	}
}

func mockOf(eng *automod.Engine) *platform.MockPlatform {
	return eng.Platform.(*platform.MockPlatform)
}

func clockOf(eng *automod.Engine) *clockwork.FakeClock {
	return eng.Clock.(*clockwork.FakeClock)
}
