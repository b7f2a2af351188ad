package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/iris-chat/warden/automod/auditlog"
	"github.com/iris-chat/warden/automod/moderr"
	"github.com/iris-chat/warden/automod/platform"
	"github.com/iris-chat/warden/automod/policy"
)

// Persists the effects of a single message: bookkeeping (strike ledger, restriction ledger, audit log) first, then platform enforcement.
//
// Bookkeeping errors abort and are returned as-is. Enforcement failures are collected into a *moderr.EnforcementError which is returned alongside a valid Outcome.
func (eng *Engine) persistEffects(c *MessageContext, eff *Effects) (*Outcome, error) {
	ctx := c.Ctx
	msg := c.Message
	pol := c.Policy
	name := displayName(pol, msg.SenderID, msg.SenderName)

	out := &Outcome{
		Rule:    eff.Rule,
		Deleted: eff.DeleteMessage,
	}
	if eff.Rule == "flood" {
		out.FloodAct = string(pol.FloodAction)
	}

	var audit []auditlog.Entry
	addAudit := func(action, reason string) {
		audit = append(audit, auditlog.Entry{
			ChatID:     msg.ChatID,
			ActorID:    eng.BotID,
			ActionType: action,
			TargetID:   auditlog.Target(msg.SenderID),
			Reason:     reason,
			At:         c.Now,
		})
	}

	if eff.Rule == "flood" {
		addAudit(auditlog.ActionFloodDetect, string(pol.FloodAction))
	} else if eff.DeleteMessage {
		addAudit(auditlog.ActionAutoDelete, auditReason(eff))
	}

	if eff.Strike {
		count, err := eng.Strikes.RecordStrike(ctx, msg.ChatID, msg.SenderID, eff.StrikeReason)
		if err != nil {
			return nil, fmt.Errorf("recording strike: %w", err)
		}
		out.StrikeCount = count
		addAudit(auditlog.ActionAutoWarn, eff.StrikeReason)
		eff.Notice("⚠️ %s, you have been warned (%d/%d). Reason: %s", name, count, pol.StrikeLimit, eff.StrikeReason)

		if eng.escalate(pol, count, name, eff) {
			out.Escalated = string(eff.Sanction)
		}
	}

	until, action, err := eng.recordSanction(ctx, msg.ChatID, msg.SenderID, eff)
	if err != nil {
		return nil, err
	}
	out.MutedUntil = until
	if action != "" {
		addAudit(action, eff.SanctionReason)
	}

	for _, e := range audit {
		if err := eng.Audit.Append(ctx, e); err != nil {
			return nil, fmt.Errorf("appending audit entry: %w", err)
		}
	}

	// bookkeeping is complete; everything below only talks to the platform
	failures := &moderr.EnforcementError{}
	enforce := func(op string, userID int64, err error) {
		if err == nil {
			return
		}
		enforcementFailureCount.WithLabelValues(op).Inc()
		c.Logger.Warn("enforcement failed", "op", op, "err", err)
		failures.Add(op, msg.ChatID, userID, err)
	}

	if eff.DeleteMessage && msg.MessageID != 0 {
		enforce("delete_message", msg.SenderID, eng.Platform.DeleteMessage(ctx, msg.ChatID, msg.MessageID))
	}
	if op, err := eng.enforceSanction(ctx, msg.ChatID, msg.SenderID, eff.Sanction, until); op != "" {
		enforce(op, msg.SenderID, err)
	}
	for _, n := range eff.Notices {
		enforce("send_notice", 0, eng.Platform.SendNotice(ctx, msg.ChatID, n))
	}
	out.Notices = eff.Notices

	if eng.Notifier != nil && out.Escalated != "" {
		if err := eng.Notifier.SendEscalation(ctx, msg.ChatID, msg.SenderID, name, out); err != nil {
			c.Logger.Error("failed to deliver escalation notification", "err", err)
		}
	}

	canonicalLogLine(c, eff, out)
	return out, failures.OrNil()
}

// Applies the policy's escalation to eff when this strike count crossed the limit. Fires only on equality, so a count already above a lowered limit never escalates again.
func (eng *Engine) escalate(pol policy.ChatPolicy, count int, name string, eff *Effects) bool {
	if count != pol.StrikeLimit || pol.EscalationAction == policy.ActionNone || eff.Sanction != "" {
		return false
	}
	escalationCount.WithLabelValues(string(pol.EscalationAction)).Inc()
	eff.ApplySanction(pol.EscalationAction, pol.EscalationMuteMinutes, fmt.Sprintf("reached %d strikes", count))
	switch pol.EscalationAction {
	case policy.ActionMute:
		if pol.EscalationMuteMinutes > 0 {
			eff.Notice("🔇 %s has been muted for %d minutes (strike limit reached).", name, pol.EscalationMuteMinutes)
		} else {
			eff.Notice("🔇 %s has been muted (strike limit reached).", name)
		}
	case policy.ActionKick:
		eff.Notice("👢 %s has been kicked (strike limit reached).", name)
	case policy.ActionBan:
		eff.Notice("🔨 %s has been banned (strike limit reached).", name)
	}
	return true
}

// Ledger side of a sanction. Returns the mute expiry (if any) and the audit action to record, empty when there is no sanction.
func (eng *Engine) recordSanction(ctx context.Context, chatID, userID int64, eff *Effects) (*time.Time, string, error) {
	switch eff.Sanction {
	case policy.ActionMute:
		until, err := eng.Restrictions.Mute(ctx, chatID, userID, minutes(eff.SanctionMinutes))
		if err != nil {
			return nil, "", fmt.Errorf("recording mute: %w", err)
		}
		return until, sanctionAudit(eff, auditlog.ActionAutoMute), nil
	case policy.ActionKick:
		return nil, sanctionAudit(eff, auditlog.ActionAutoKick), nil
	case policy.ActionBan:
		return nil, sanctionAudit(eff, auditlog.ActionAutoBan), nil
	}
	return nil, "", nil
}

// Platform side of a sanction. Returns the enforcement op name, empty when there is nothing to enforce.
func (eng *Engine) enforceSanction(ctx context.Context, chatID, userID int64, sanction policy.Action, until *time.Time) (string, error) {
	switch sanction {
	case policy.ActionMute:
		return "restrict_user", eng.Platform.RestrictUser(ctx, chatID, userID, until)
	case policy.ActionKick:
		return "kick_user", platform.Kick(ctx, eng.Platform, chatID, userID)
	case policy.ActionBan:
		return "ban_user", eng.Platform.BanUser(ctx, chatID, userID)
	}
	return "", nil
}

func auditReason(eff *Effects) string {
	if eff.Detail == "" {
		return eff.Rule
	}
	return eff.Rule + ": " + eff.Detail
}

func sanctionAudit(eff *Effects, def string) string {
	if eff.SanctionAudit != "" {
		return eff.SanctionAudit
	}
	return def
}

func canonicalLogLine(c *MessageContext, eff *Effects, out *Outcome) {
	logger := c.Logger
	if c.Policy.PrivacyMode {
		logger = logger.With("sender", "masked")
	}
	logger.Info("canonical-event-line",
		"rule", eff.Rule,
		"deleted", out.Deleted,
		"strikes", out.StrikeCount,
		"escalated", out.Escalated,
		"sanction", eff.Sanction,
		"notices", len(out.Notices),
	)
}
