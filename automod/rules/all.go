package rules

import (
	"github.com/iris-chat/warden/automod"
)

// Content rules in evaluation order. The first rule to flag a message wins.
func DefaultRules() automod.RuleSet {
	rules := automod.RuleSet{
		MessageRules: []automod.MessageRuleFunc{
			DuplicateFloodRule,
			ExcessiveCapsRule,
			EmojiSpamRule,
			InviteLinkRule,
			NSFWKeywordRule,
			ChatFilterRule,
		},
	}
	return rules
}
