package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/iris-chat/warden/automod/filterstore"
	"github.com/iris-chat/warden/automod/floodstore"
	"github.com/iris-chat/warden/automod/helpers"
	"github.com/iris-chat/warden/automod/policy"
)

// The interface exposed to content rules for a single message.
type MessageContext struct {
	// Actual golang "context.Context", if needed for timeouts etc
	Ctx context.Context
	// Any errors encountered while processing methods on this struct get rolled up in this nullable field
	Err error
	// slog logger handle, with event-specific structured fields pre-populated. Pointer, but expected to never be nil.
	Logger *slog.Logger

	Message Message
	// message text with code blocks, inline code and quotes removed
	Stripped string
	Policy   policy.ChatPolicy
	Now      time.Time

	engine  *Engine // NOTE: pointer, but expected never to be nil
	verdict *Verdict
}

func (eng *Engine) newMessageContext(ctx context.Context, msg Message, pol policy.ChatPolicy, now time.Time) *MessageContext {
	return &MessageContext{
		Ctx:      ctx,
		Logger:   eng.Logger.With("chat", msg.ChatID, "user", msg.SenderID, "msg", msg.MessageID),
		Message:  msg,
		Stripped: helpers.StripCodeAndQuotes(msg.Text),
		Policy:   pol,
		Now:      now,
		engine:   eng,
	}
}

// Records the rule decision. Only the first verdict counts; later calls are ignored.
func (c *MessageContext) Flag(v Verdict) {
	if c.verdict != nil {
		return
	}
	c.Logger.Debug("rule matched", "rule", v.Rule, "detail", v.Detail)
	c.verdict = &v
}

func (c *MessageContext) Verdict() *Verdict {
	return c.verdict
}

// Feeds the message to the always-on repeated-message detector.
func (c *MessageContext) ObserveDuplicate() floodstore.DuplicateResult {
	return c.engine.Duplicates.Observe(c.Message.ChatID, c.Message.SenderID, c.Message.Text, c.Now)
}

// Chat-specific filters active at the message time, in creation order. Errors are recorded in c.Err and read as an empty list.
func (c *MessageContext) ActiveFilters() []filterstore.Filter {
	filters, err := c.engine.Filters.ListActive(c.Ctx, c.Message.ChatID, c.Now)
	if err != nil {
		if c.Err == nil {
			c.Err = err
		}
		return nil
	}
	return filters
}

// First active filter matching the stripped text.
func (c *MessageContext) MatchFilter() (filterstore.Filter, bool) {
	return c.engine.Matcher.First(c.ActiveFilters(), c.Stripped)
}
