package slug

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UpdatedSuffix marks slugs of rewritten articles.
const UpdatedSuffix = "-updated"

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// FromURL derives a slug from the path of an article link. The part after
// prefix (for example "/blogs/") is used when present; otherwise the last
// non-empty path segment. Slashes are dropped. Returns "" when nothing usable
// remains.
func FromURL(link, prefix string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}

	path := u.Path
	if prefix != "" {
		if _, after, found := strings.Cut(path, prefix); found {
			return strings.ReplaceAll(after, "/", "")
		}
	}

	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// FromTitle builds a lowercase ASCII slug from free text, folding
// diacritics ("Café Menü" -> "cafe-menu").
func FromTitle(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	s := nonSlugChars.ReplaceAllString(strings.ToLower(folded), "-")
	return strings.Trim(s, "-")
}

func Updated(original string) string {
	return original + UpdatedSuffix
}
