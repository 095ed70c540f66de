package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceName(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"plain", "laptop._scribble._tcp.local.", "laptop", true},
		{"escaped space", `my\ laptop._scribble._tcp.local.`, "my laptop", true},
		{"other service", "laptop._http._tcp.local.", "", false},
		{"empty instance", "._scribble._tcp.local.", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := instanceName(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromEntries(t *testing.T) {
	entries := []*mdns.ServiceEntry{
		{Name: "zeta._scribble._tcp.local.", Host: "zeta.local.", AddrV4: net.IPv4(10, 0, 0, 2), Port: 3000},
		{Name: "alpha._scribble._tcp.local.", Host: "alpha.local.", AddrV4: net.IPv4(10, 0, 0, 1), Port: 4000, InfoFields: []string{"version=dev"}},
		{Name: "alpha._scribble._tcp.local.", Host: "alpha.local.", AddrV4: net.IPv4(10, 0, 0, 1), Port: 4000},
		{Name: "printer._ipp._tcp.local.", Port: 631},
		{Name: "noport._scribble._tcp.local."},
		nil,
	}

	got := fromEntries(entries)
	require.Len(t, got, 2)
	assert.Equal(t, Server{
		Instance: "alpha",
		Host:     "alpha.local.",
		Addr:     "10.0.0.1",
		Port:     4000,
		Info:     []string{"version=dev"},
	}, got[0])
	assert.Equal(t, "zeta", got[1].Instance)
}

func TestServer_URL(t *testing.T) {
	assert.Equal(t, "ws://10.0.0.1:3000/ws", Server{Addr: "10.0.0.1", Port: 3000}.URL())
	assert.Equal(t, "ws://host.local:3000/ws", Server{Host: "host.local.", Port: 3000}.URL())
}

func TestBrowse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Browse(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
