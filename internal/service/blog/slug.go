package blog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/brightpixel/agency-portal/internal/security"
)

const (
	maxSlugLength = 80
	excerptLength = 200
)

// Slugify turns a title into a URL path segment: accents are folded,
// anything other than a-z and 0-9 becomes a single hyphen.
func Slugify(title string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		case !hyphen && b.Len() > 0:
			b.WriteByte('-')
			hyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "post"
	}
	return slug
}

// Excerpt derives a plain-text summary from article HTML, cut on a word
// boundary. Block boundaries become spaces so paragraphs don't run together.
func Excerpt(content string) string {
	spaced := strings.ReplaceAll(content, "<", " <")
	text := strings.Join(strings.Fields(security.NewSanitizer(0).Text(spaced)), " ")
	if len([]rune(text)) <= excerptLength {
		return text
	}
	cut := security.Truncate(text, excerptLength)
	if i := strings.LastIndexByte(cut, ' '); i > excerptLength/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}
