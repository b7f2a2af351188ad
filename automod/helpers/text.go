package helpers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iris-chat/warden/automod/moderr"

	"github.com/spaolacci/murmur3"
)

// returns a fast, compact hash of a string
//
// current implementation uses murmur3, default seed, and hex encoding
func HashOfString(s string) string {
	val := murmur3.Sum64([]byte(s))
	return fmt.Sprintf("%016x", val)
}

var (
	fencedCodeRegex = regexp.MustCompile("```[\\s\\S]*?```")
	inlineCodeRegex = regexp.MustCompile("`[^`]*`")
	quoteLineRegex  = regexp.MustCompile(`(?m)^>.*$`)
)

// Removes fenced code blocks, inline code spans, and quoted lines, then trims surrounding whitespace.
//
// Content rules which judge what the sender wrote (caps, keywords, filters) run against this output, so that pasted code and quotes of other people don't count against the sender.
func StripCodeAndQuotes(raw string) string {
	out := fencedCodeRegex.ReplaceAllString(raw, "")
	out = inlineCodeRegex.ReplaceAllString(out, "")
	out = quoteLineRegex.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// Fraction of the letters in the string which are upper-case. Digits, spaces and punctuation are not counted. Returns 0 when there are no letters.
func CapsRatio(s string) float64 {
	total := 0
	upper := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(upper) / float64(total)
}

// Counts runes outside the basic multilingual plane, which is where nearly all emoji live.
func CountEmoji(s string) int {
	c := 0
	for _, r := range s {
		if r >= 0x10000 && r <= 0x10FFFF {
			c++
		}
	}
	return c
}

// Parses moderator-style durations: "10m", "2h", "1d", or a bare integer number of minutes.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, moderr.Invalid("duration", "empty duration")
	}
	unit := time.Minute
	num := s
	switch s[len(s)-1] {
	case 'm':
		num = s[:len(s)-1]
	case 'h':
		unit = time.Hour
		num = s[:len(s)-1]
	case 'd':
		unit = 24 * time.Hour
		num = s[:len(s)-1]
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0, moderr.Invalid("duration", "can not parse %q", s)
	}
	return time.Duration(n) * unit, nil
}
