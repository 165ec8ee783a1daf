package security

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	scriptBlockRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?(</script\s*>|$)`)
	iframeBlockRe  = regexp.MustCompile(`(?is)<iframe\b[^>]*>.*?(</iframe\s*>|$)`)
	eventHandlerRe = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	dangerousURLRe = regexp.MustCompile(`(?i)(javascript|vbscript)\s*:|data\s*:\s*text/html`)
)

// maxPasses bounds the strip/unescape loop. Each pass can only remove
// characters, so real input settles in two or three.
const maxPasses = 8

var (
	strictPolicy = bluemonday.StrictPolicy()
	richPolicy   = newRichPolicy()
)

func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Sanitizer cleans visitor and staff supplied text.
// MaxLength is counted in runes; zero means unlimited.
type Sanitizer struct {
	MaxLength int
}

// NewSanitizer returns a Sanitizer truncating plain text at maxLength runes.
func NewSanitizer(maxLength int) *Sanitizer {
	return &Sanitizer{MaxLength: maxLength}
}

// Text returns s as plain text: script and iframe blocks are dropped with
// their content, event handler attributes and script URLs are removed, every
// remaining tag is stripped and entities are decoded. The result is trimmed
// and truncated to MaxLength.
func (z *Sanitizer) Text(s string) string {
	out := strings.TrimSpace(plain(s))
	if z != nil && z.MaxLength > 0 {
		out = strings.TrimSpace(Truncate(out, z.MaxLength))
	}
	return out
}

// HTML keeps formatting markup for article bodies and email content.
// Links are forced to rel="nofollow noopener".
func (z *Sanitizer) HTML(s string) string {
	return strings.TrimSpace(richPolicy.Sanitize(stripDangerous(s)))
}

// ContainsMarkup reports whether Text would alter s beyond trimming and
// truncation.
func (z *Sanitizer) ContainsMarkup(s string) bool {
	return strings.TrimSpace(plain(s)) != strings.TrimSpace(s)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func plain(s string) string {
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(strictPolicy.Sanitize(stripDangerous(s)))
		if next == s {
			break
		}
		s = next
	}
	return s
}

func stripDangerous(s string) string {
	s = scriptBlockRe.ReplaceAllString(s, "")
	s = iframeBlockRe.ReplaceAllString(s, "")
	s = eventHandlerRe.ReplaceAllString(s, "")
	return dangerousURLRe.ReplaceAllString(s, "")
}
