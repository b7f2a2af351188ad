package rules

import (
	"regexp"

	"github.com/iris-chat/warden/automod"
)

// Chat invite links and the common URL shorteners used to hide them. Case-sensitive, like the links clients generate.
var inviteLinkRegex = regexp.MustCompile(`(t\.me/joinchat|t\.me/\+|telegram\.me/joinchat|bit\.ly|goo\.gl|t\.co)`)

var _ automod.MessageRuleFunc = InviteLinkRule

// Checked against the raw text: hiding a link inside a code block does not make it safe.
func InviteLinkRule(c *automod.MessageContext) error {
	if m := inviteLinkRegex.FindString(c.Message.Text); m != "" {
		c.Flag(automod.Verdict{
			Rule:   "invite-link",
			Detail: m,
			Delete: true,
		})
	}
	return nil
}
