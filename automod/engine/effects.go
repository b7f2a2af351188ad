package engine

import (
	"fmt"
	"time"

	"github.com/iris-chat/warden/automod/policy"
)

// Mutable container for the side-effects of processing one event.
//
// Effects are collected first and persisted in bulk at the end: bookkeeping (strikes, restrictions, audit) before any platform call, so enforcement failures never leave the ledger behind.
type Effects struct {
	// rule or detector responsible, used for metrics and audit reasons
	Rule          string
	Detail        string
	DeleteMessage bool
	// record a strike against the sender
	Strike       bool
	StrikeReason string
	// direct sanction, independent of the strike ledger (flood action, bot ban)
	Sanction        policy.Action
	SanctionMinutes int
	SanctionReason  string
	// audit action override for the sanction; defaults to auto_<action>
	SanctionAudit string
	Notices       []string
}

func (e *Effects) Delete() {
	e.DeleteMessage = true
}

func (e *Effects) AddStrike(reason string) {
	e.Strike = true
	e.StrikeReason = reason
}

func (e *Effects) ApplySanction(action policy.Action, minutes int, reason string) {
	e.Sanction = action
	e.SanctionMinutes = minutes
	e.SanctionReason = reason
}

func (e *Effects) Notice(format string, args ...any) {
	e.Notices = append(e.Notices, fmt.Sprintf(format, args...))
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
