package media

import (
	"regexp"
	"strings"
	"unicode"
)

// punctuation matches non-alphanumeric, non-space characters.
var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// multiSpace collapses multiple whitespace chars into one.
var multiSpace = regexp.MustCompile(`\s+`)

// leadingArticles are stripped from the front of a name when building the
// comparison form, so "The Beatles" and "Beatles" compare equal.
var leadingArticles = []string{"the ", "a ", "an ", "los ", "las ", "les ", "de "}

// SortNameOf normalizes a display name into its comparison form: lowercase,
// leading article removed, punctuation removed, whitespace collapsed.
// Identity comparisons always use this form, never the display name.
func SortNameOf(name string) string {
	s := strings.ToLower(name)
	for _, article := range leadingArticles {
		if strings.HasPrefix(s, article) {
			s = s[len(article):]
			break
		}
	}
	s = punctuation.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimFunc(s, unicode.IsSpace)
}

// EnsureSortName fills in the item's SortName from its display name when the
// provider did not supply one.
func (i *Item) EnsureSortName() {
	if i.SortName == "" {
		i.SortName = SortNameOf(i.Name)
	}
}
