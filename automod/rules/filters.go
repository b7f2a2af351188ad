package rules

import (
	"github.com/iris-chat/warden/automod"
)

var _ automod.MessageRuleFunc = ChatFilterRule

// Moderator-defined filters for this chat.
func ChatFilterRule(c *automod.MessageContext) error {
	f, ok := c.MatchFilter()
	if !ok {
		return nil
	}
	c.Flag(automod.Verdict{
		Rule:   "chat-filter",
		Detail: f.Spec(),
		Delete: true,
		Notice: "🚫 %s, that word is blocked in this chat.",
	})
	return nil
}
