package utils

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// lineBreak is the marker newlines are rewritten to; it is always allowed by the sanitizer.
const lineBreak = "<br>"

// contentSkippedElements lose their text in bluemonday unless explicitly kept.
var contentSkippedElements = []string{
	"frame", "frameset", "iframe", "noembed", "noframes", "noscript", "nostyle", "object", "title",
}

// scriptLikeElements are raw text containers whose body bluemonday only emits unescaped.
var scriptLikeElements = map[string]bool{"script": true, "style": true}

var (
	threeOrMoreNewlines = regexp.MustCompile(`\n{3,}`)
	twoNewlines         = regexp.MustCompile(`\n\n`)
)

// SanitizePolicy is the allow-list the sanitizer enforces.
type SanitizePolicy struct {
	// Tags allowed without attributes, e.g. "i", "strong", "code".
	Tags []string
	// Attrs lists the attributes kept per tag, e.g. "a": {"href", "title"}.
	// A tag listed here is allowed even when missing from Tags.
	Attrs map[string][]string
	// URLSchemes accepted in href values.
	URLSchemes []string
}

// DefaultSanitizePolicy allows emphasis, strong emphasis, inline code and hyperlinks.
func DefaultSanitizePolicy() SanitizePolicy {
	return SanitizePolicy{
		Tags:       []string{"a", "code", "i", "strong"},
		Attrs:      map[string][]string{"a": {"href", "title"}},
		URLSchemes: []string{"http", "https", "mailto"},
	}
}

// Sanitizer turns user text into the restricted HTML subset stored as text_html.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer compiles the given allow-list into a bluemonday policy.
func NewSanitizer(sp SanitizePolicy) *Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("br")
	p.AllowElementsContent(contentSkippedElements...)
	for _, tag := range sp.Tags {
		if len(sp.Attrs[tag]) == 0 {
			p.AllowElements(tag)
		}
	}
	for tag, attrs := range sp.Attrs {
		if len(attrs) > 0 {
			p.AllowAttrs(attrs...).OnElements(tag)
		}
	}
	if len(sp.URLSchemes) > 0 {
		// schemes restrict absolute URLs only; relative links stay
		p.RequireParseableURLs(true)
		p.AllowRelativeURLs(true)
		p.AllowURLSchemes(sp.URLSchemes...)
	}
	return &Sanitizer{policy: p}
}

// Sanitize normalizes line breaks and strips everything outside the allow-list.
// Disallowed tags are dropped while their text content is kept, script and style bodies included.
func (s *Sanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(NormalizeLineBreaks(unwrapScriptLike(raw)))
}

// unwrapScriptLike replaces script and style elements with their body as escaped text.
// Everything else is copied through untouched.
func unwrapScriptLike(raw string) string {
	if !strings.Contains(strings.ToLower(raw), "<s") {
		return raw
	}
	var out bytes.Buffer
	out.Grow(len(raw))
	z := html.NewTokenizer(strings.NewReader(raw))
	inside := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				return raw
			}
			return out.String()
		}
		chunk := append([]byte(nil), z.Raw()...)
		switch tt {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if scriptLikeElements[string(name)] {
				switch tt {
				case html.StartTagToken:
					inside++
				case html.EndTagToken:
					inside = max(inside-1, 0)
				}
				continue
			}
		case html.TextToken:
			if inside > 0 {
				out.WriteString(html.EscapeString(string(chunk)))
				continue
			}
		}
		out.Write(chunk)
	}
}

// NormalizeLineBreaks rewrites newline runs: three or more become three markers,
// exactly two become two, a single one becomes one.
func NormalizeLineBreaks(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = threeOrMoreNewlines.ReplaceAllLiteralString(text, lineBreak+lineBreak+lineBreak)
	text = twoNewlines.ReplaceAllLiteralString(text, lineBreak+lineBreak)
	return strings.ReplaceAll(text, "\n", lineBreak)
}
