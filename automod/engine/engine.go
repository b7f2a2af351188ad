package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iris-chat/warden/automod/auditlog"
	"github.com/iris-chat/warden/automod/filterstore"
	"github.com/iris-chat/warden/automod/floodstore"
	"github.com/iris-chat/warden/automod/platform"
	"github.com/iris-chat/warden/automod/policy"
	"github.com/iris-chat/warden/automod/restriction"
	"github.com/iris-chat/warden/automod/settings"
	"github.com/iris-chat/warden/automod/strikestore"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("warden/engine")

// runtime for executing rules, managing state, and recording moderation actions.
//
// Several pointer fields are required (not nil); use the fixture or cmd wiring as reference.
type Engine struct {
	Logger       *slog.Logger
	Rules        RuleSet
	Policies     settings.PolicyStore
	Strikes      strikestore.StrikeStore
	Flood        *floodstore.Detector
	Duplicates   *floodstore.DuplicateDetector
	Filters      filterstore.Store
	Matcher      *filterstore.Matcher
	Restrictions *restriction.Manager
	Audit        auditlog.AuditLog
	Platform     platform.Platform
	Clock        clockwork.Clock
	// account ID of the bot itself; exempt from all rules, and the actor for automatic audit entries
	BotID int64
	// optional
	Notifier Notifier
}

func (eng *Engine) now(at time.Time) time.Time {
	if !at.IsZero() {
		return at
	}
	return eng.Clock.Now()
}

// Bot account or current chat admin. Evaluated fresh on every call: admin status can change between messages.
func (eng *Engine) isExempt(ctx context.Context, chatID, userID int64) (bool, error) {
	if userID == eng.BotID {
		return true, nil
	}
	return eng.Platform.IsChatAdmin(ctx, chatID, userID)
}

// Runs the full moderation pipeline for one inbound message.
//
// A returned *moderr.EnforcementError means decisions were recorded but some platform calls failed; the Outcome is still valid in that case.
func (eng *Engine) ProcessMessage(ctx context.Context, msg Message) (out *Outcome, err error) {
	// similar to an HTTP server, we want to recover any panics from rule execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("automod event execution exception", "err", r, "chat", msg.ChatID, "user", msg.SenderID)
			eventErrorCount.WithLabelValues("message").Inc()
			out = nil
			err = fmt.Errorf("panic while processing message: %v", r)
		}
	}()
	ctx, span := tracer.Start(ctx, "ProcessMessage", trace.WithAttributes(
		attribute.Int64("chat", msg.ChatID),
		attribute.Int64("user", msg.SenderID),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("message").Observe(time.Since(start).Seconds())
	}()
	eventProcessCount.WithLabelValues("message").Inc()

	out, err = eng.processMessage(ctx, msg)
	if err != nil {
		span.RecordError(err)
		eventErrorCount.WithLabelValues("message").Inc()
	}
	return out, err
}

func (eng *Engine) processMessage(ctx context.Context, msg Message) (*Outcome, error) {
	exempt, err := eng.isExempt(ctx, msg.ChatID, msg.SenderID)
	if err != nil {
		return nil, fmt.Errorf("checking admin status: %w", err)
	}
	if exempt {
		return &Outcome{Exempt: true}, nil
	}
	if msg.IsPrivate() {
		return &Outcome{}, nil
	}

	now := eng.now(msg.At)
	pol, err := eng.Policies.Get(ctx, msg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	c := eng.newMessageContext(ctx, msg, pol, now)
	eff := &Effects{}

	if msg.SenderIsBot {
		eff.Rule = "bot-account"
		eff.ApplySanction(policy.ActionBan, 0, "bot accounts are not allowed")
		eff.SanctionAudit = auditlog.ActionAutoBotBan
		eff.Notice("🚫 No bots allowed here.")
		return eng.persistEffects(c, eff)
	}
	if !pol.AutoModEnabled {
		return &Outcome{}, nil
	}

	// enforcement of an earlier mute may have failed on the platform side; the ledger is authoritative
	muted, err := eng.Restrictions.IsMuted(ctx, msg.ChatID, msg.SenderID)
	if err != nil {
		return nil, fmt.Errorf("checking mute: %w", err)
	}
	if muted {
		eff.Rule = "muted"
		eff.Delete()
		return eng.persistEffects(c, eff)
	}

	if pol.FloodEnabled {
		timeframe := time.Duration(pol.FloodTimeframeSeconds) * time.Second
		if eng.Flood.Observe(msg.ChatID, msg.SenderID, now, pol.FloodThreshold, timeframe) {
			eng.Flood.Reset(msg.ChatID, msg.SenderID)
			floodTriggerCount.WithLabelValues("window").Inc()
			eng.floodEffects(c, eff)
			return eng.persistEffects(c, eff)
		}
	}

	if err := eng.Rules.CallMessageRules(c); err != nil {
		return nil, fmt.Errorf("running content rules: %w", err)
	}
	v := c.Verdict()
	if v == nil {
		c.Logger.Debug("message clean")
		return &Outcome{}, nil
	}
	ruleMatchCount.WithLabelValues(v.Rule).Inc()
	eff.Rule = v.Rule
	eff.Detail = v.Detail
	if v.Delete {
		eff.Delete()
	}
	if v.Strike {
		eff.AddStrike(v.Reason)
	}
	if v.Notice != "" {
		eff.Notice(v.Notice, displayName(pol, msg.SenderID, msg.SenderName))
	}
	return eng.persistEffects(c, eff)
}

func (eng *Engine) floodEffects(c *MessageContext, eff *Effects) {
	pol := c.Policy
	name := displayName(pol, c.Message.SenderID, c.Message.SenderName)
	eff.Rule = "flood"
	eff.Detail = string(pol.FloodAction)
	eff.Delete()
	switch pol.FloodAction {
	case policy.ActionWarn:
		eff.AddStrike("Flood detected")
	case policy.ActionMute:
		eff.ApplySanction(policy.ActionMute, pol.FloodMuteMinutes, "flood")
		eff.Notice("🚫 %s has been muted for flooding.", name)
	case policy.ActionKick:
		eff.ApplySanction(policy.ActionKick, 0, "flood")
		eff.Notice("🚫 %s has been kicked for flooding.", name)
	case policy.ActionBan:
		eff.ApplySanction(policy.ActionBan, 0, "flood")
		eff.Notice("🚫 %s has been banned for flooding.", name)
	}
}

// Bans bot accounts added to group chats (other than this bot, and bots the admins made admin).
func (eng *Engine) ProcessMembership(ctx context.Context, evt MembershipEvent) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("automod event execution exception", "err", r, "chat", evt.ChatID, "user", evt.UserID)
			eventErrorCount.WithLabelValues("membership").Inc()
			out = nil
			err = fmt.Errorf("panic while processing membership: %v", r)
		}
	}()
	eventProcessCount.WithLabelValues("membership").Inc()

	if !evt.IsBot || evt.ChatType == ChatPrivate {
		return &Outcome{}, nil
	}
	exempt, err := eng.isExempt(ctx, evt.ChatID, evt.UserID)
	if err != nil {
		return nil, fmt.Errorf("checking admin status: %w", err)
	}
	if exempt {
		return &Outcome{Exempt: true}, nil
	}
	pol, err := eng.Policies.Get(ctx, evt.ChatID)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	msg := Message{
		ChatID:      evt.ChatID,
		ChatType:    evt.ChatType,
		SenderID:    evt.UserID,
		SenderName:  evt.Username,
		SenderIsBot: true,
	}
	c := eng.newMessageContext(ctx, msg, pol, eng.Clock.Now())
	eff := &Effects{Rule: "bot-account"}
	eff.ApplySanction(policy.ActionBan, 0, "bot accounts are not allowed")
	eff.SanctionAudit = auditlog.ActionAutoBotBan
	eff.Notice("🚫 No bots allowed here.")
	return eng.persistEffects(c, eff)
}

// Runs the content rules only, without exemptions, flood windows, or any bookkeeping. The repeated-message detector does observe the text.
//
// Clean messages return a zero Verdict (empty Rule).
func (eng *Engine) Evaluate(ctx context.Context, chatID, userID int64, rawText string) (Verdict, error) {
	pol, err := eng.Policies.Get(ctx, chatID)
	if err != nil {
		return Verdict{}, fmt.Errorf("loading policy: %w", err)
	}
	msg := Message{ChatID: chatID, ChatType: ChatSupergroup, SenderID: userID, Text: rawText}
	c := eng.newMessageContext(ctx, msg, pol, eng.Clock.Now())
	if err := eng.Rules.CallMessageRules(c); err != nil {
		return Verdict{}, err
	}
	if v := c.Verdict(); v != nil {
		return *v, nil
	}
	return Verdict{}, nil
}

// Hook for the restriction manager: restores chat permissions and announces it once a timed lock lapses.
func (eng *Engine) HandleAutoUnlock(ctx context.Context, chatID int64) {
	logger := eng.Logger.With("chat", chatID)
	if err := eng.Audit.Append(ctx, auditlog.Entry{
		ChatID:     chatID,
		ActorID:    eng.BotID,
		ActionType: auditlog.ActionAutoUnlock,
		At:         eng.Clock.Now(),
	}); err != nil {
		logger.Error("failed to audit auto-unlock", "err", err)
	}
	if err := eng.Platform.SetChatLocked(ctx, chatID, false); err != nil {
		enforcementFailureCount.WithLabelValues("set_chat_locked").Inc()
		logger.Warn("auto-unlock enforcement failed", "err", err)
		return
	}
	if err := eng.Platform.SendNotice(ctx, chatID, "🔓 Chat auto-unlocked! Everyone can speak again."); err != nil {
		logger.Warn("auto-unlock notice failed", "err", err)
	}
}

func displayName(pol policy.ChatPolicy, userID int64, name string) string {
	if pol.PrivacyMode {
		return "a member"
	}
	if name == "" {
		return fmt.Sprintf("user %d", userID)
	}
	return name
}
