package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	c := Default()

	if c.Relay.MaxPeers != 2 {
		t.Errorf("MaxPeers = %d, want 2", c.Relay.MaxPeers)
	}
	if c.Relay.Overflow != OverflowReject {
		t.Errorf("Overflow = %q, want reject", c.Relay.Overflow)
	}
	if got := c.Session.MediaWait(); got != 10*time.Second {
		t.Errorf("MediaWait = %s, want 10s", got)
	}
	if c.Session.JoinOfferDelay != 500*time.Millisecond || c.Session.StatusOfferDelay != time.Second {
		t.Errorf("unexpected offer delays: %s / %s", c.Session.JoinOfferDelay, c.Session.StatusOfferDelay)
	}
	if len(c.Session.STUNServers) != 2 {
		t.Errorf("STUNServers = %v", c.Session.STUNServers)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad role", func(c *Config) { c.Role = "spectator" }, "invalid role"},
		{"one peer", func(c *Config) { c.Relay.MaxPeers = 1 }, "max_peers"},
		{"bad overflow", func(c *Config) { c.Relay.Overflow = "queue" }, "relay.overflow"},
		{"pong before ping", func(c *Config) { c.Relay.PongWait = c.Relay.PingInterval }, "pong_wait"},
		{"http url", func(c *Config) { c.Session.URL = "http://localhost:3000" }, "session.url"},
		{"no attempts", func(c *Config) { c.Session.MediaPollAttempts = -1 }, "media poll"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

// TestLoadYAMLAndEnv verifies the precedence: YAML values, then environment
// overrides, then defaults for anything still unset.
func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "duocall.yaml")
	yamlDoc := `role: caller
log_level: debug
relay:
  overflow: observe
  ping_interval: 5s
  pong_wait: 15s
session:
  url: ws://relay.example:3000/ws
  renegotiate: true
media:
  devices: [front, back]
`
	if err := os.WriteFile(file, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("PORT", "4000")
	t.Setenv("DUOCALL_URL", "wss://override.example/ws")

	c, err := Load(file)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Role != RoleCaller {
		t.Errorf("Role = %q", c.Role)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", c.LogLevel)
	}
	if c.Relay.Overflow != OverflowObserve {
		t.Errorf("Overflow = %q", c.Relay.Overflow)
	}
	if c.Relay.PingInterval != 5*time.Second || c.Relay.PongWait != 15*time.Second {
		t.Errorf("keepalive = %s / %s", c.Relay.PingInterval, c.Relay.PongWait)
	}
	if c.Relay.Addr != "0.0.0.0:4000" {
		t.Errorf("Addr = %q, want PORT override", c.Relay.Addr)
	}
	if c.Session.URL != "wss://override.example/ws" {
		t.Errorf("URL = %q, want env override", c.Session.URL)
	}
	if !c.Session.Renegotiate {
		t.Error("Renegotiate should be true")
	}
	if len(c.Media.Devices) != 2 || c.Media.Devices[1] != "back" {
		t.Errorf("Devices = %v", c.Media.Devices)
	}
	if c.Relay.MaxPeers != 2 {
		t.Errorf("MaxPeers default not applied: %d", c.Relay.MaxPeers)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "http")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")

	c := Default()
	c.Role = RoleReceiver
	c.Relay.Overflow = OverflowObserve
	if err := c.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Role != RoleReceiver || loaded.Relay.Overflow != OverflowObserve {
		t.Errorf("round trip lost values: role=%q overflow=%q", loaded.Role, loaded.Relay.Overflow)
	}
	if loaded.Session.JoinOfferDelay != c.Session.JoinOfferDelay {
		t.Errorf("JoinOfferDelay = %s, want %s", loaded.Session.JoinOfferDelay, c.Session.JoinOfferDelay)
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := Default().Save(""); err == nil {
		t.Fatal("expected error when no path is known")
	}
}
