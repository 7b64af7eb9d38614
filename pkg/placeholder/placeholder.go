// Package placeholder expands date and time tokens inside watermark text.
package placeholder

import (
	"strings"
	"time"
)

type token struct {
	name   string
	layout string
}

// Longer tokens come first so that a composite token is never split by one
// of its parts.
var tokens = []token{
	{"{YYYY-MM-DD HH:mm}", "2006-01-02 15:04"},
	{"{YYYY-MM-DD}", "2006-01-02"},
	{"{HH:mm}", "15:04"},
	{"{YYYY}", "2006"},
	{"{MM}", "01"},
	{"{DD}", "02"},
	{"{HH}", "15"},
	{"{mm}", "04"},
	{"{ss}", "05"},
}

// Tokens lists the recognised placeholders.
func Tokens() []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.name
	}
	return out
}

// Substitute replaces every recognised token in text with now formatted
// accordingly. Unknown {...} sequences are left untouched and replacement
// output is never rescanned.
func Substitute(text string, now time.Time) string {
	if !strings.Contains(text, "{") {
		return text
	}
	pairs := make([]string, 0, 2*len(tokens))
	for _, t := range tokens {
		pairs = append(pairs, t.name, now.Format(t.layout))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
