package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalURL(t *testing.T) {
	tests := []struct {
		scheme, addr, path string
		want               string
	}{
		{"http", ":3000", "", "http://localhost:3000"},
		{"ws", "0.0.0.0:3000", "/ws", "ws://localhost:3000/ws"},
		{"ws", "[::]:4000", "/ws", "ws://localhost:4000/ws"},
		{"http", "192.168.1.5:3000", "", "http://192.168.1.5:3000"},
		{"ws", "[::1]:3000", "/ws", "ws://[::1]:3000/ws"},
		{"http", "draw.local:80", "", "http://draw.local:80"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, localURL(tt.scheme, tt.addr, tt.path), tt.addr)
	}
}
