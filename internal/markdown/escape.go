// Package markdown escapes Slack-flavoured markdown in text that is echoed
// back into chat, such as search result snippets.
package markdown

import (
	"regexp"
	"strings"
)

const (
	urlPattern      = `<[^: >]+:/[^ >]+>|(?:https?|steam)://[^\s<]+[^<.,:;"'\]\s]`
	commonPattern   = `^>(?:>>)?\s|\[.+\]\(.+\)`
	specialPattern  = "[_\\\\~|*`]"
	spanSpecials    = "*`_~|"
	escapeCharacter = '\\'
)

var (
	escapeRegex     = regexp.MustCompile(`(?P<markdown>` + specialPattern + `|` + commonPattern + `)`)
	escapeLinkRegex = regexp.MustCompile(`(?P<url>` + urlPattern + `)|(?P<markdown>` + specialPattern + `|` + commonPattern + `)`)

	quotePrefixRegex = regexp.MustCompile(`^>(?:>>)?\s`)
	linkRegex        = regexp.MustCompile(`^\[.+\]\(.+\)`)
)

type options struct {
	asNeeded  bool
	keepLinks bool
}

// Option changes how Escape treats its input.
type Option func(*options)

// AsNeeded only escapes characters that open a complete markdown span, so
// "**hello**" becomes `\*\*hello**`. Literal backslashes are doubled first.
// Links are not preserved in this mode.
func AsNeeded() Option {
	return func(o *options) {
		o.asNeeded = true
	}
}

// KeepLinks controls whether URLs are copied through unescaped. On by default.
func KeepLinks(keep bool) Option {
	return func(o *options) {
		o.keepLinks = keep
	}
}

// Escape backslash-escapes markdown special characters in text. Input that
// contains no markdown is returned unchanged.
func Escape(text string, opts ...Option) string {
	o := options{keepLinks: true}
	for _, opt := range opts {
		opt(&o)
	}

	if o.asNeeded {
		return escapeAsNeeded(text)
	}
	if o.keepLinks {
		return escapeMatches(text, escapeLinkRegex)
	}
	return escapeMatches(text, escapeRegex)
}

func escapeMatches(text string, re *regexp.Regexp) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	urlGroup := re.SubexpIndex("url")

	var b strings.Builder
	b.Grow(len(text) + len(matches))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		if urlGroup < 0 || m[2*urlGroup] < 0 {
			b.WriteByte(escapeCharacter)
		}
		b.WriteString(text[m[0]:m[1]])
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

func escapeAsNeeded(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)

	// closing[c] is the last index holding c that is not directly preceded
	// by another c. An earlier c opens a span only if such a closer follows.
	var closing [256]int
	for i := 1; i < len(text); i++ {
		if text[i] != text[i-1] && strings.IndexByte(spanSpecials, text[i]) >= 0 {
			closing[text[i]] = i
		}
	}

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		c := text[i]
		if strings.IndexByte(spanSpecials, c) >= 0 {
			if closing[c] > i {
				b.WriteByte(escapeCharacter)
			}
			b.WriteByte(c)
			i++
			continue
		}

		var span string
		if i == 0 {
			span = quotePrefixRegex.FindString(text)
		}
		if span == "" && c == '[' {
			span = linkRegex.FindString(text[i:])
		}
		if span != "" {
			b.WriteByte(escapeCharacter)
			b.WriteString(span)
			i += len(span)
			continue
		}

		b.WriteByte(c)
		i++
	}
	return b.String()
}
