// Per-chat moderation policy, with explicit defaults and validation.
package policy

import (
	"github.com/iris-chat/warden/automod/moderr"
)

type Action string

const (
	ActionNone Action = "none"
	ActionWarn Action = "warn"
	ActionMute Action = "mute"
	ActionKick Action = "kick"
	ActionBan  Action = "ban"
)

// minutes in a year; upper bound for any configured mute duration
const maxMuteMinutes = 525600

// Moderation configuration for a single chat. The zero value is not meaningful: start from Default().
type ChatPolicy struct {
	AutoModEnabled bool `json:"auto_mod_enabled"`

	// number of strikes at which EscalationAction is applied
	StrikeLimit      int    `json:"strike_limit"`
	EscalationAction Action `json:"escalation_action"`
	// zero means indefinite
	EscalationMuteMinutes int `json:"escalation_mute_minutes"`

	FloodEnabled          bool   `json:"flood_enabled"`
	FloodThreshold        int    `json:"flood_threshold"`
	FloodTimeframeSeconds int    `json:"flood_timeframe_seconds"`
	FloodAction           Action `json:"flood_action"`
	// zero means indefinite
	FloodMuteMinutes int `json:"flood_mute_minutes"`

	// masks sender names in notices and logs
	PrivacyMode bool `json:"privacy_mode"`
	// audit entries older than this are purged by maintenance
	RetentionDays int `json:"retention_days"`
}

func Default() ChatPolicy {
	return ChatPolicy{
		AutoModEnabled:        true,
		StrikeLimit:           3,
		EscalationAction:      ActionBan,
		EscalationMuteMinutes: 0,
		FloodEnabled:          true,
		FloodThreshold:        5,
		FloodTimeframeSeconds: 5,
		FloodAction:           ActionMute,
		FloodMuteMinutes:      10,
		PrivacyMode:           false,
		RetentionDays:         30,
	}
}

func (p ChatPolicy) Validate() error {
	if p.StrikeLimit < 1 || p.StrikeLimit > 100 {
		return moderr.Invalid("strike_limit", "must be between 1 and 100, got %d", p.StrikeLimit)
	}
	switch p.EscalationAction {
	case ActionBan, ActionKick, ActionMute, ActionNone:
	default:
		return moderr.Invalid("escalation_action", "unknown action %q", p.EscalationAction)
	}
	if p.EscalationMuteMinutes < 0 || p.EscalationMuteMinutes > maxMuteMinutes {
		return moderr.Invalid("escalation_mute_minutes", "must be between 0 and %d", maxMuteMinutes)
	}
	if p.FloodThreshold < 1 || p.FloodThreshold > 1000 {
		return moderr.Invalid("flood_threshold", "must be between 1 and 1000, got %d", p.FloodThreshold)
	}
	if p.FloodTimeframeSeconds < 1 || p.FloodTimeframeSeconds > 3600 {
		return moderr.Invalid("flood_timeframe_seconds", "must be between 1 and 3600, got %d", p.FloodTimeframeSeconds)
	}
	switch p.FloodAction {
	case ActionWarn, ActionMute, ActionKick, ActionBan:
	default:
		return moderr.Invalid("flood_action", "unknown action %q", p.FloodAction)
	}
	if p.FloodMuteMinutes < 0 || p.FloodMuteMinutes > maxMuteMinutes {
		return moderr.Invalid("flood_mute_minutes", "must be between 0 and %d", maxMuteMinutes)
	}
	if p.RetentionDays < 1 || p.RetentionDays > 3650 {
		return moderr.Invalid("retention_days", "must be between 1 and 3650, got %d", p.RetentionDays)
	}
	return nil
}

