package validate

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// StripTags drops every HTML tag and comment from s, keeps the unescaped text
// between them and trims the result. Unescaping can surface new tags
// ("&lt;b&gt;" becomes "<b>"), so passes repeat until the text stops
// shrinking; the result never carries markup.
func StripTags(s string) string {
	out := stripOnce(s)
	for len(out) < len(s) && strings.ContainsAny(out, "<&") {
		s, out = out, stripOnce(out)
	}
	return out
}

func stripOnce(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				return strings.TrimSpace(s)
			}
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
