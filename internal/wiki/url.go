package wiki

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/atlascope/wikirag/internal/domain"
)

// TitleFromURL extracts a page title from an article URL: the last non-empty
// path segment, percent-decoded, with underscores replaced by spaces.
// URLs outside wikipedia.org are rejected.
func TitleFromURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: parse url %q: %v", domain.ErrInvalidReference, rawURL, err)
	}

	host := strings.ToLower(parsed.Hostname())
	if host != "wikipedia.org" && !strings.HasSuffix(host, ".wikipedia.org") {
		return "", fmt.Errorf("%w: %q is not a wikipedia.org url", domain.ErrInvalidReference, rawURL)
	}

	segments := strings.Split(parsed.Path, "/")
	var last string
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			last = segments[i]
			break
		}
	}
	if last == "" {
		return "", fmt.Errorf("%w: %q has no page title in path", domain.ErrInvalidReference, rawURL)
	}

	decoded, err := url.PathUnescape(last)
	if err != nil {
		return "", fmt.Errorf("%w: decode title %q: %v", domain.ErrInvalidReference, last, err)
	}
	return strings.ReplaceAll(decoded, "_", " "), nil
}
