package wiki

import (
	"regexp"
	"strings"
)

var (
	citationRe = regexp.MustCompile(`\[\d+]`)
	newlinesRe = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes a raw extract: strips bracketed numeric citation
// markers, collapses runs of three or more newlines to exactly two, and trims
// surrounding whitespace.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	withoutRefs := citationRe.ReplaceAllString(text, "")
	condensed := newlinesRe.ReplaceAllString(withoutRefs, "\n\n")
	return strings.TrimSpace(condensed)
}
