package rules

import (
	"github.com/iris-chat/warden/automod"
)

var _ automod.MessageRuleFunc = DuplicateFloodRule

// Deletes a run of identical messages sent in quick succession. The strike is only recorded once per run.
func DuplicateFloodRule(c *automod.MessageContext) error {
	res := c.ObserveDuplicate()
	if !res.Triggered {
		return nil
	}
	c.Flag(automod.Verdict{
		Rule:   "duplicate-flood",
		Detail: "repeated message",
		Delete: true,
		Strike: res.FirstInSpree,
		Reason: "Spam/Flood detected",
	})
	return nil
}
