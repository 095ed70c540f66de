package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"localhost:*", "*.example.com"}

	tests := []struct {
		name     string
		patterns []string
		origin   string
		want     bool
	}{
		{"no origin header", patterns, "", true},
		{"localhost any port", patterns, "http://localhost:5173", true},
		{"subdomain", patterns, "https://draw.example.com", true},
		{"apex does not match subdomain glob", patterns, "https://example.com", false},
		{"foreign host", patterns, "https://evil.test", false},
		{"garbage", patterns, "::not a url", false},
		{"wildcard", []string{"*"}, "https://anything.test:8080", true},
		{"no patterns", nil, "https://a.test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, originAllowed(tt.patterns, tt.origin))
		})
	}
}
