package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	fallbackSlug  = "post"
	slugSuffixLen = 6
	slugAttempts  = 4
	defaultTitle  = "Untitled Post"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into a URL-safe slug: compatibility-decomposed,
// stripped of combining marks, lowercased, with runs of anything outside
// [a-z0-9] collapsed to one hyphen. An empty result becomes "post".
func Slugify(title string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	decomposed, _, err := transform.String(t, title)
	if err != nil {
		decomposed = title
	}

	slug := nonAlphanumeric.ReplaceAllString(strings.ToLower(decomposed), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// randomSlugSuffix returns six lowercase hex characters.
func randomSlugSuffix() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:slugSuffixLen]
}
