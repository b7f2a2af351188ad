package rules

import (
	"fmt"
	"unicode/utf8"

	"github.com/iris-chat/warden/automod"
	"github.com/iris-chat/warden/automod/helpers"
)

const (
	capsMinLength = 10
	capsMaxRatio  = 0.7
	emojiMax      = 10
)

var _ automod.MessageRuleFunc = ExcessiveCapsRule

// Shouting. Code blocks and quotes don't count, so pasted logs or quoted text are fine.
func ExcessiveCapsRule(c *automod.MessageContext) error {
	if utf8.RuneCountInString(c.Stripped) <= capsMinLength {
		return nil
	}
	ratio := helpers.CapsRatio(c.Stripped)
	if ratio > capsMaxRatio {
		c.Flag(automod.Verdict{
			Rule:   "excessive-caps",
			Detail: fmt.Sprintf("%.2f", ratio),
			Delete: true,
		})
	}
	return nil
}

var _ automod.MessageRuleFunc = EmojiSpamRule

func EmojiSpamRule(c *automod.MessageContext) error {
	n := helpers.CountEmoji(c.Message.Text)
	if n > emojiMax {
		c.Flag(automod.Verdict{
			Rule:   "emoji-spam",
			Detail: fmt.Sprintf("%d", n),
			Delete: true,
		})
	}
	return nil
}
