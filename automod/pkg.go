package automod

import (
	"github.com/iris-chat/warden/automod/engine"
)

type Engine = engine.Engine
type RuleSet = engine.RuleSet

type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier

type MessageContext = engine.MessageContext
type Message = engine.Message
type MembershipEvent = engine.MembershipEvent
type Verdict = engine.Verdict
type Outcome = engine.Outcome
type WarnResult = engine.WarnResult
type SettingsExport = engine.SettingsExport

type MessageRuleFunc = engine.MessageRuleFunc

const (
	ChatPrivate    = engine.ChatPrivate
	ChatGroup      = engine.ChatGroup
	ChatSupergroup = engine.ChatSupergroup
)

var WarnPresets = engine.WarnPresets
