package engine

// Content rule over a single message. Rules call c.Flag to report a match.
type MessageRuleFunc = func(c *MessageContext) error

// Holds the ordered content rules and dispatches messages to them.
type RuleSet struct {
	MessageRules []MessageRuleFunc
}

// Runs rules in order until one flags the message. The first match short-circuits the rest.
func (r *RuleSet) CallMessageRules(c *MessageContext) error {
	for _, f := range r.MessageRules {
		if err := f(c); err != nil {
			return err
		}
		if c.Err != nil {
			return c.Err
		}
		if c.verdict != nil {
			return nil
		}
	}
	return nil
}
