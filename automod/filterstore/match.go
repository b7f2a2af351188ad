package filterstore

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

var scriptTables = map[string]*unicode.RangeTable{
	"arabic":     {R16: []unicode.Range16{{Lo: 0x0600, Hi: 0x06FF, Stride: 1}}},
	"cyrillic":   {R16: []unicode.Range16{{Lo: 0x0400, Hi: 0x04FF, Stride: 1}}},
	"chinese":    {R16: []unicode.Range16{{Lo: 0x4E00, Hi: 0x9FFF, Stride: 1}}},
	"greek":      {R16: []unicode.Range16{{Lo: 0x0370, Hi: 0x03FF, Stride: 1}}},
	"hebrew":     {R16: []unicode.Range16{{Lo: 0x0590, Hi: 0x05FF, Stride: 1}}},
	"devanagari": {R16: []unicode.Range16{{Lo: 0x0900, Hi: 0x097F, Stride: 1}}},
	"thai":       {R16: []unicode.Range16{{Lo: 0x0E00, Hi: 0x0E7F, Stride: 1}}},
}

func KnownScripts() []string {
	out := make([]string, 0, len(scriptTables))
	for name := range scriptTables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func containsScript(text, script string) bool {
	tbl, ok := scriptTables[script]
	if !ok {
		return false
	}
	for _, r := range text {
		if unicode.Is(tbl, r) {
			return true
		}
	}
	return false
}

// Evaluates filters against message text. Compiled regexes are cached across messages and chats.
type Matcher struct {
	regexes *lru.Cache[string, *regexp.Regexp]
}

func NewMatcher(size int) *Matcher {
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		// only fails for non-positive size
		panic(err)
	}
	return &Matcher{regexes: c}
}

func (m *Matcher) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := m.regexes.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	m.regexes.Add(pattern, re)
	return re, nil
}

// Reports whether a single filter matches. "text" should already have code and quotes stripped.
func (m *Matcher) Match(f Filter, text string) bool {
	switch f.Kind {
	case KindScript:
		return containsScript(text, f.Pattern)
	case KindRegex:
		re, err := m.compile(f.Pattern)
		if err != nil {
			// stored filters are validated on creation; a failure here means the row was edited out-of-band
			slog.Warn("skipping filter with invalid regex", "filter", f.ID, "chat", f.ChatID, "err", err)
			return false
		}
		return re.MatchString(text)
	case KindLiteral:
		return strings.Contains(strings.ToLower(text), strings.ToLower(f.Pattern))
	}
	return false
}

// Returns the first matching filter, in the order given.
func (m *Matcher) First(filters []Filter, text string) (Filter, bool) {
	for _, f := range filters {
		if m.Match(f, text) {
			return f, true
		}
	}
	return Filter{}, false
}
