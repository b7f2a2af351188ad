// Chat-specific content filters: parsing and validation, storage, and matching.
package filterstore

import (
	"regexp"
	"strings"
	"time"

	"github.com/iris-chat/warden/automod/helpers"
	"github.com/iris-chat/warden/automod/moderr"
)

type Kind string

const (
	KindLiteral Kind = "literal"
	KindRegex   Kind = "regex"
	KindScript  Kind = "script"
)

type Filter struct {
	ID      uint64
	ChatID  int64
	Kind    Kind
	Pattern string
	// nil means the filter never expires
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Active iff it has no expiry or the expiry is strictly after "now".
func (f Filter) ActiveAt(now time.Time) bool {
	return f.ExpiresAt == nil || f.ExpiresAt.After(now)
}

// Moderator-facing form of the filter, as accepted by Parse.
func (f Filter) Spec() string {
	switch f.Kind {
	case KindRegex:
		return "regex:" + f.Pattern
	case KindScript:
		return "script:" + f.Pattern
	}
	return f.Pattern
}

const maxPatternLen = 512

// Parses a moderator filter definition.
//
// The first field is the pattern: "regex:<re>", "script:<name>", or a literal word. An optional "duration:<d>" field (eg, "duration:10m") sets an expiry relative to "now". Invalid regexes and unknown scripts are rejected here, so stored filters always evaluate.
func Parse(chatID int64, def string, now time.Time) (Filter, error) {
	fields := strings.Fields(def)
	if len(fields) == 0 {
		return Filter{}, moderr.Invalid("pattern", "empty filter")
	}
	f := Filter{
		ChatID:    chatID,
		CreatedAt: now,
	}
	head := fields[0]
	switch {
	case strings.HasPrefix(head, "regex:"):
		f.Kind = KindRegex
		f.Pattern = head[len("regex:"):]
	case strings.HasPrefix(head, "script:"):
		f.Kind = KindScript
		f.Pattern = strings.ToLower(head[len("script:"):])
	default:
		f.Kind = KindLiteral
		f.Pattern = head
	}
	for _, arg := range fields[1:] {
		if !strings.HasPrefix(arg, "duration:") {
			return Filter{}, moderr.Invalid("filter", "unexpected argument %q", arg)
		}
		d, err := helpers.ParseDuration(arg[len("duration:"):])
		if err != nil {
			return Filter{}, err
		}
		if d > 0 {
			exp := now.Add(d)
			f.ExpiresAt = &exp
		}
	}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func (f Filter) Validate() error {
	if f.Pattern == "" {
		return moderr.Invalid("pattern", "empty pattern")
	}
	if len(f.Pattern) > maxPatternLen {
		return moderr.Invalid("pattern", "longer than %d bytes", maxPatternLen)
	}
	switch f.Kind {
	case KindLiteral:
	case KindRegex:
		if _, err := regexp.Compile("(?i)" + f.Pattern); err != nil {
			return moderr.Invalid("pattern", "invalid regex: %v", err)
		}
	case KindScript:
		if _, ok := scriptTables[f.Pattern]; !ok {
			return moderr.Invalid("pattern", "unknown script %q (known: %s)", f.Pattern, strings.Join(KnownScripts(), ", "))
		}
	default:
		return moderr.Invalid("kind", "unknown filter kind %q", f.Kind)
	}
	return nil
}
