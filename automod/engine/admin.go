package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iris-chat/warden/automod/auditlog"
	"github.com/iris-chat/warden/automod/filterstore"
	"github.com/iris-chat/warden/automod/moderr"
	"github.com/iris-chat/warden/automod/platform"
	"github.com/iris-chat/warden/automod/policy"
	"github.com/iris-chat/warden/automod/strikestore"
)

// Short codes moderators can give instead of a free-text warn reason.
var WarnPresets = map[string]string{
	"s": "Spamming/Flood",
	"a": "Advertising/Links",
	"n": "NSFW/Inappropriate Content",
	"u": "Unkind/Abusive Behavior",
	"r": "Raid behavior detected",
}

func expandReason(reason string) string {
	if r, ok := WarnPresets[reason]; ok {
		return r
	}
	if reason == "" {
		return "No reason provided"
	}
	return reason
}

type WarnResult struct {
	Count int
	Limit int
	// escalation applied because this warn crossed the strike limit; empty otherwise
	Escalated  policy.Action
	MutedUntil *time.Time
}

func (eng *Engine) requireAdmin(ctx context.Context, chatID, actorID int64) error {
	ok, err := eng.Platform.IsChatAdmin(ctx, chatID, actorID)
	if err != nil {
		return fmt.Errorf("checking admin status: %w", err)
	}
	if !ok {
		return moderr.ErrPermissionDenied
	}
	return nil
}

// Admins and the bot itself can not be targeted by moderation actions.
func (eng *Engine) protectTarget(ctx context.Context, chatID, targetID int64) error {
	if targetID == eng.BotID {
		return moderr.Invalid("target", "can not moderate the bot itself")
	}
	ok, err := eng.Platform.IsChatAdmin(ctx, chatID, targetID)
	if err != nil {
		return fmt.Errorf("checking admin status: %w", err)
	}
	if ok {
		return moderr.Invalid("target", "can not moderate a chat admin")
	}
	return nil
}

func (eng *Engine) checkAction(ctx context.Context, actorID, chatID, targetID int64) error {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return err
	}
	return eng.protectTarget(ctx, chatID, targetID)
}

func (eng *Engine) audit(ctx context.Context, chatID, actorID int64, action string, target *int64, reason string) error {
	adminActionCount.WithLabelValues(action).Inc()
	err := eng.Audit.Append(ctx, auditlog.Entry{
		ChatID:     chatID,
		ActorID:    actorID,
		ActionType: action,
		TargetID:   target,
		Reason:     reason,
		At:         eng.Clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

func (eng *Engine) enforcementFailed(failures *moderr.EnforcementError, op string, chatID, userID int64, err error) {
	if err == nil {
		return
	}
	enforcementFailureCount.WithLabelValues(op).Inc()
	eng.Logger.Warn("enforcement failed", "op", op, "chat", chatID, "user", userID, "err", err)
	failures.Add(op, chatID, userID, err)
}

// Records a strike on behalf of a moderator, escalating exactly like automatic strikes do.
func (eng *Engine) RecordManualWarn(ctx context.Context, actorID, chatID, targetID int64, reason string) (*WarnResult, error) {
	if err := eng.checkAction(ctx, actorID, chatID, targetID); err != nil {
		return nil, err
	}
	pol, err := eng.Policies.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	reason = expandReason(reason)
	count, err := eng.Strikes.RecordStrike(ctx, chatID, targetID, reason)
	if err != nil {
		return nil, fmt.Errorf("recording strike: %w", err)
	}
	if err := eng.audit(ctx, chatID, actorID, auditlog.ActionWarn, auditlog.Target(targetID), reason); err != nil {
		return nil, err
	}
	res := &WarnResult{Count: count, Limit: pol.StrikeLimit}

	failures := &moderr.EnforcementError{}
	name := displayName(pol, targetID, "")
	eff := &Effects{Rule: "manual-warn"}
	eff.Notice("⚠️ %s has been warned (%d/%d). Reason: %s", name, count, pol.StrikeLimit, reason)
	if eng.escalate(pol, count, name, eff) {
		res.Escalated = eff.Sanction
		until, action, err := eng.recordSanction(ctx, chatID, targetID, eff)
		if err != nil {
			return nil, err
		}
		res.MutedUntil = until
		if err := eng.audit(ctx, chatID, eng.BotID, action, auditlog.Target(targetID), eff.SanctionReason); err != nil {
			return nil, err
		}
		op, err := eng.enforceSanction(ctx, chatID, targetID, eff.Sanction, until)
		eng.enforcementFailed(failures, op, chatID, targetID, err)
		if eng.Notifier != nil {
			out := &Outcome{Rule: eff.Rule, StrikeCount: count, Escalated: string(eff.Sanction), MutedUntil: until}
			if err := eng.Notifier.SendEscalation(ctx, chatID, targetID, name, out); err != nil {
				eng.Logger.Error("failed to deliver escalation notification", "err", err)
			}
		}
	}
	for _, n := range eff.Notices {
		eng.enforcementFailed(failures, "send_notice", chatID, 0, eng.Platform.SendNotice(ctx, chatID, n))
	}
	return res, failures.OrNil()
}

func (eng *Engine) ResetWarns(ctx context.Context, actorID, chatID, targetID int64) error {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return err
	}
	if err := eng.Strikes.ResetStrikes(ctx, chatID, targetID); err != nil {
		return fmt.Errorf("resetting strikes: %w", err)
	}
	return eng.audit(ctx, chatID, actorID, auditlog.ActionResetWarns, auditlog.Target(targetID), "")
}

func (eng *Engine) GetWarns(ctx context.Context, actorID, chatID, targetID int64) (strikestore.Record, error) {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return strikestore.Record{}, err
	}
	return eng.Strikes.GetRecord(ctx, chatID, targetID)
}

// Mutes a member. A non-positive duration mutes indefinitely. Returns the expiry, nil when indefinite.
func (eng *Engine) MuteUser(ctx context.Context, actorID, chatID, targetID int64, d time.Duration, reason string) (*time.Time, error) {
	if err := eng.checkAction(ctx, actorID, chatID, targetID); err != nil {
		return nil, err
	}
	until, err := eng.Restrictions.Mute(ctx, chatID, targetID, d)
	if err != nil {
		return nil, fmt.Errorf("recording mute: %w", err)
	}
	if err := eng.audit(ctx, chatID, actorID, auditlog.ActionMute, auditlog.Target(targetID), reason); err != nil {
		return nil, err
	}
	failures := &moderr.EnforcementError{}
	eng.enforcementFailed(failures, "restrict_user", chatID, targetID, eng.Platform.RestrictUser(ctx, chatID, targetID, until))
	return until, failures.OrNil()
}

func (eng *Engine) UnmuteUser(ctx context.Context, actorID, chatID, targetID int64) error {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return err
	}
	if err := eng.Restrictions.Unmute(ctx, chatID, targetID); err != nil {
		return fmt.Errorf("clearing mute: %w", err)
	}
	if err := eng.audit(ctx, chatID, actorID, auditlog.ActionUnmute, auditlog.Target(targetID), ""); err != nil {
		return err
	}
	failures := &moderr.EnforcementError{}
	eng.enforcementFailed(failures, "lift_restriction", chatID, targetID, eng.Platform.LiftRestriction(ctx, chatID, targetID))
	return failures.OrNil()
}

func (eng *Engine) BanUser(ctx context.Context, actorID, chatID, targetID int64, reason string) error {
	if err := eng.checkAction(ctx, actorID, chatID, targetID); err != nil {
		return err
	}
	if err := eng.audit(ctx, chatID, actorID, auditlog.ActionBan, auditlog.Target(targetID), reason); err != nil {
		return err
	}
	failures := &moderr.EnforcementError{}
	eng.enforcementFailed(failures, "ban_user", chatID, targetID, eng.Platform.BanUser(ctx, chatID, targetID))
	return failures.OrNil()
}

func (eng *Engine) UnbanUser(ctx context.Context, actorID, chatID, targetID int64) error {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return err
	}
	if err := eng.audit(ctx, chatID, actorID, auditlog.ActionUnban, auditlog.Target(targetID), ""); err != nil {
		return err
	}
	failures := &moderr.EnforcementError{}
	eng.enforcementFailed(failures, "unban_user", chatID, targetID, eng.Platform.UnbanUser(ctx, chatID, targetID))
	return failures.OrNil()
}

// Removes a member while letting them rejoin later.
func (eng *Engine) KickUser(ctx context.Context, actorID, chatID, targetID int64, reason string) error {
	if err := eng.checkAction(ctx, actorID, chatID, targetID); err != nil {
		return err
	}
	if err := eng.audit(ctx, chatID, actorID, auditlog.ActionKick, auditlog.Target(targetID), reason); err != nil {
		return err
	}
	failures := &moderr.EnforcementError{}
	eng.enforcementFailed(failures, "kick_user", chatID, targetID, platform.Kick(ctx, eng.Platform, chatID, targetID))
	return failures.OrNil()
}

// Locks the chat for regular members. With a positive duration the lock lifts itself, and the chat is told when it does.
func (eng *Engine) LockChat(ctx context.Context, actorID, chatID int64, d time.Duration) (*time.Time, error) {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return nil, err
	}
	until, err := eng.Restrictions.LockChat(ctx, chatID, d)
	if err != nil {
		return nil, fmt.Errorf("recording lock: %w", err)
	}
	reason := "indefinite"
	if d > 0 {
		reason = d.String()
	}
	if err := eng.audit(ctx, chatID, actorID, auditlog.ActionLock, nil, reason); err != nil {
		return nil, err
	}
	failures := &moderr.EnforcementError{}
	eng.enforcementFailed(failures, "set_chat_locked", chatID, 0, eng.Platform.SetChatLocked(ctx, chatID, true))
	return until, failures.OrNil()
}

func (eng *Engine) UnlockChat(ctx context.Context, actorID, chatID int64) error {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return err
	}
	if err := eng.Restrictions.UnlockChat(ctx, chatID); err != nil {
		return fmt.Errorf("clearing lock: %w", err)
	}
	if err := eng.audit(ctx, chatID, actorID, auditlog.ActionUnlock, nil, ""); err != nil {
		return err
	}
	failures := &moderr.EnforcementError{}
	eng.enforcementFailed(failures, "set_chat_locked", chatID, 0, eng.Platform.SetChatLocked(ctx, chatID, false))
	return failures.OrNil()
}

// Parses, validates, and stores a filter definition (see filterstore.Parse). Invalid definitions return a *moderr.ValidationError and nothing is stored.
func (eng *Engine) AddFilter(ctx context.Context, actorID, chatID int64, def string) (filterstore.Filter, error) {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return filterstore.Filter{}, err
	}
	f, err := filterstore.Parse(chatID, def, eng.Clock.Now())
	if err != nil {
		return filterstore.Filter{}, err
	}
	f, err = eng.Filters.Add(ctx, f)
	if err != nil {
		return filterstore.Filter{}, fmt.Errorf("storing filter: %w", err)
	}
	if err := eng.audit(ctx, chatID, actorID, auditlog.ActionAddFilter, nil, f.Spec()); err != nil {
		return filterstore.Filter{}, err
	}
	return f, nil
}

// Removes filters matching the definition's pattern; any duration argument is ignored. Returns the number removed.
func (eng *Engine) RemoveFilter(ctx context.Context, actorID, chatID int64, def string) (int, error) {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return 0, err
	}
	f, err := filterstore.Parse(chatID, def, eng.Clock.Now())
	if err != nil {
		return 0, err
	}
	n, err := eng.Filters.Remove(ctx, chatID, f.Kind, f.Pattern)
	if err != nil {
		return 0, fmt.Errorf("removing filter: %w", err)
	}
	if n > 0 {
		if err := eng.audit(ctx, chatID, actorID, auditlog.ActionRemFilter, nil, f.Spec()); err != nil {
			return n, err
		}
	}
	return n, nil
}

// All stored filters, including expired ones not yet purged.
func (eng *Engine) ListFilters(ctx context.Context, actorID, chatID int64) ([]filterstore.Filter, error) {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return nil, err
	}
	return eng.Filters.List(ctx, chatID)
}

// Applies "update" to the current policy and stores the result if it validates. The stored policy is untouched on validation failure.
func (eng *Engine) ConfigurePolicy(ctx context.Context, actorID, chatID int64, update func(p *policy.ChatPolicy)) (policy.ChatPolicy, error) {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return policy.ChatPolicy{}, err
	}
	cur, err := eng.Policies.Get(ctx, chatID)
	if err != nil {
		return policy.ChatPolicy{}, fmt.Errorf("loading policy: %w", err)
	}
	next := cur
	update(&next)
	if err := next.Validate(); err != nil {
		return cur, err
	}
	if err := eng.Policies.Put(ctx, chatID, next); err != nil {
		return cur, fmt.Errorf("storing policy: %w", err)
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return next, fmt.Errorf("encoding policy for audit: %w", err)
	}
	if err := eng.audit(ctx, chatID, actorID, auditlog.ActionConfigure, nil, string(raw)); err != nil {
		return next, err
	}
	return next, nil
}

func (eng *Engine) GetAuditSummary(ctx context.Context, actorID, chatID int64) (map[auditlog.SummaryKey]int, error) {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return nil, err
	}
	return eng.Audit.Summarize(ctx, chatID)
}

// Most recent audit entries for the chat, newest first.
func (eng *Engine) RecentActions(ctx context.Context, actorID, chatID int64, limit int) ([]auditlog.Entry, error) {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		return nil, moderr.Invalid("limit", "must be between 1 and 100, got %d", limit)
	}
	return eng.Audit.Recent(ctx, chatID, limit)
}

// Human admins with no audit entries in this chat.
func (eng *Engine) InactiveAdmins(ctx context.Context, actorID, chatID int64) ([]platform.Member, error) {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return nil, err
	}
	admins, err := eng.Platform.ListAdmins(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing admins: %w", err)
	}
	actors, err := eng.Audit.ListActors(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing audit actors: %w", err)
	}
	active := make(map[int64]bool, len(actors))
	for _, a := range actors {
		active[a] = true
	}
	var out []platform.Member
	for _, m := range admins {
		if m.IsBot || m.UserID == eng.BotID || active[m.UserID] {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Portable snapshot of a chat's moderation settings.
type SettingsExport struct {
	Version int               `json:"version"`
	Policy  policy.ChatPolicy `json:"policy"`
	// filter definitions in filterstore.Parse form; expiry is not carried over
	Filters []string `json:"filters"`
}

const settingsExportVersion = 1

func (eng *Engine) ExportSettings(ctx context.Context, actorID, chatID int64) ([]byte, error) {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return nil, err
	}
	pol, err := eng.Policies.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	filters, err := eng.Filters.ListActive(ctx, chatID, eng.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("listing filters: %w", err)
	}
	doc := SettingsExport{
		Version: settingsExportVersion,
		Policy:  pol,
		Filters: make([]string, 0, len(filters)),
	}
	for _, f := range filters {
		doc.Filters = append(doc.Filters, f.Spec())
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Replaces the chat policy and adds any filters not already present. The whole document is validated before anything is written.
func (eng *Engine) ImportSettings(ctx context.Context, actorID, chatID int64, data []byte) error {
	if err := eng.requireAdmin(ctx, chatID, actorID); err != nil {
		return err
	}
	var doc SettingsExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return moderr.Invalid("settings", "malformed document: %v", err)
	}
	if doc.Version != settingsExportVersion {
		return moderr.Invalid("version", "unsupported settings version %d", doc.Version)
	}
	if err := doc.Policy.Validate(); err != nil {
		return err
	}
	now := eng.Clock.Now()
	parsed := make([]filterstore.Filter, 0, len(doc.Filters))
	for _, def := range doc.Filters {
		f, err := filterstore.Parse(chatID, def, now)
		if err != nil {
			var ve *moderr.ValidationError
			if errors.As(err, &ve) {
				return moderr.Invalid("filters", "%q: %s", def, ve.Msg)
			}
			return err
		}
		parsed = append(parsed, f)
	}

	existing, err := eng.Filters.List(ctx, chatID)
	if err != nil {
		return fmt.Errorf("listing filters: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, f := range existing {
		have[f.Spec()] = true
	}
	if err := eng.Policies.Put(ctx, chatID, doc.Policy); err != nil {
		return fmt.Errorf("storing policy: %w", err)
	}
	added := 0
	for _, f := range parsed {
		if have[f.Spec()] {
			continue
		}
		have[f.Spec()] = true
		if _, err := eng.Filters.Add(ctx, f); err != nil {
			return fmt.Errorf("storing filter: %w", err)
		}
		added++
	}
	return eng.audit(ctx, chatID, actorID, auditlog.ActionImport, nil, fmt.Sprintf("policy + %d new filters", added))
}
