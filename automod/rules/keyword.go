package rules

import (
	"github.com/iris-chat/warden/automod"
	"github.com/iris-chat/warden/automod/keyword"
)

var nsfwKeywords = []string{
	"nsfw",
	"porn",
	"hentai",
	"sex",
	"pussy",
	"dick",
}

var _ automod.MessageRuleFunc = NSFWKeywordRule

func NSFWKeywordRule(c *automod.MessageContext) error {
	if kw, ok := keyword.ContainsAny(c.Stripped, nsfwKeywords); ok {
		c.Flag(automod.Verdict{
			Rule:   "nsfw-keyword",
			Detail: kw,
			Delete: true,
			Strike: true,
			Reason: "NSFW content (Auto-Mod)",
		})
	}
	return nil
}
