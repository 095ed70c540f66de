package server

import (
	"net/url"

	"github.com/bmatcuk/doublestar/v4"
)

// originAllowed reports whether origin matches one of the host glob patterns.
// Patterns match the origin's host[:port], e.g. "localhost:*" or
// "*.example.com". An absent Origin header is allowed; only browsers send one.
func originAllowed(patterns []string, origin string) bool {
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, u.Host); ok {
			return true
		}
	}
	return false
}
