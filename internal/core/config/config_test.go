package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), dataDir)
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 100, cfg.History.Capacity)
	assert.Equal(t, 256, cfg.Transport.SendBuffer)
	assert.Equal(t, 54*time.Second, cfg.Transport.PingInterval)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.NotEmpty(t, cfg.Discovery.Instance)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:4000"
  allowed_origins: ["localhost:*", "*.example.com"]
  shutdown_timeout: 3s
history:
  capacity: 25
transport:
  pong_timeout: 20s
discovery:
  enabled: true
  instance: studio
activity:
  enabled: true
  max_entries: 50
`)

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Addr)
	assert.Len(t, cfg.Server.AllowedOrigins, 2)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 25, cfg.History.Capacity)
	assert.Equal(t, 20*time.Second, cfg.Transport.PongTimeout)
	assert.Equal(t, 18*time.Second, cfg.Transport.PingInterval, "ping interval follows pong timeout")
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, "studio", cfg.Discovery.Instance)
	assert.Equal(t, 50, cfg.Activity.MaxEntries)

	port, err := cfg.Port()
	require.NoError(t, err)
	assert.Equal(t, 4000, port)
}

func TestLoad_PingInterval(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		want      time.Duration
	}{
		{name: "default", transport: "send_buffer: 64", want: 54 * time.Second},
		{name: "derived from short pong timeout", transport: "pong_timeout: 10s", want: 9 * time.Second},
		{name: "explicit", transport: "pong_timeout: 10s\n  ping_interval: 4s", want: 4 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "transport:\n  "+tt.transport+"\n")

			cfg, err := Load(path, t.TempDir())
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Transport.PingInterval)
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")

	_, err := Load(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "nope"
history:
  capacity: -1
transport:
  pong_timeout: 10s
  ping_interval: 30s
`)

	_, err := Load(path, t.TempDir())

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"server.addr", "history.capacity", "transport.ping_interval"}, fields)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:      "bad origin glob",
			mutate:    func(c *Config) { c.Server.AllowedOrigins = []string{"[unclosed"} },
			wantField: "server.allowed_origins[0]",
		},
		{
			name:      "port out of range",
			mutate:    func(c *Config) { c.Server.Addr = ":70000" },
			wantField: "server.addr",
		},
		{
			name:      "zero send buffer",
			mutate:    func(c *Config) { c.Transport.SendBuffer = 0 },
			wantField: "transport.send_buffer",
		},
		{
			name:      "tiny message limit",
			mutate:    func(c *Config) { c.Transport.MaxMessageBytes = 10 },
			wantField: "transport.max_message_bytes",
		},
		{
			name: "activity without data dir",
			mutate: func(c *Config) {
				c.Activity.Enabled = true
				c.DataDir = ""
			},
			wantField: "data_dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			require.Len(t, fieldErrs, 1)
			assert.Equal(t, tt.wantField, fieldErrs[0].Field)
		})
	}
}

func TestConfig_ActivityDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	assert.Equal(t, filepath.Join("/data", "activity"), cfg.ActivityDir())
}

func TestConfig_Warnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   []string
	}{
		{
			name:   "defaults warn about open origins",
			mutate: func(c *Config) {},
			want:   []string{"allowed_origins[0]"},
		},
		{
			name: "restricted origins",
			mutate: func(c *Config) {
				c.Server.AllowedOrigins = []string{"localhost:*"}
			},
			want: nil,
		},
		{
			name: "discovery on loopback",
			mutate: func(c *Config) {
				c.Server.AllowedOrigins = []string{"localhost:*"}
				c.Server.Addr = "127.0.0.1:3000"
				c.Discovery.Enabled = true
			},
			want: []string{"server.addr"},
		},
		{
			name: "discovery on all interfaces",
			mutate: func(c *Config) {
				c.Server.AllowedOrigins = []string{"localhost:*"}
				c.Discovery.Enabled = true
			},
			want: nil,
		},
		{
			name: "huge history",
			mutate: func(c *Config) {
				c.Server.AllowedOrigins = []string{"localhost:*"}
				c.History.Capacity = 50000
			},
			want: []string{"capacity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			var items []string
			for _, w := range cfg.Warnings() {
				items = append(items, w.Item)
			}
			assert.Equal(t, tt.want, items)
		})
	}
}
