// Package config holds the CLI configuration types and loads them from a
// YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

// Role represents the process role chosen on the command line.
type Role string

const (
	RoleRelay    Role = "relay"
	RoleCaller   Role = "caller"
	RoleReceiver Role = "receiver"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleRelay, RoleCaller, RoleReceiver:
		return true
	}
	return false
}

// OverflowPolicy decides what happens to sockets beyond MaxPeers.
type OverflowPolicy string

const (
	// OverflowReject closes extra sockets with a policy-violation close frame.
	OverflowReject OverflowPolicy = "reject"
	// OverflowObserve keeps extra sockets as observers that only see
	// lifecycle notifications.
	OverflowObserve OverflowPolicy = "observe"
)

// Config stores all parameters for the relay and the call client.
type Config struct {
	Role     Role   `yaml:"role"`
	LogLevel string `yaml:"log_level"`

	Relay   RelayConfig   `yaml:"relay"`
	Session SessionConfig `yaml:"session"`
	Media   MediaConfig   `yaml:"media"`

	file string `yaml:"-"`
}

// RelayConfig configures the signaling relay server.
type RelayConfig struct {
	Addr          string         `yaml:"addr"`       // listen address, e.g. "0.0.0.0:3000"
	StaticDir     string         `yaml:"static_dir"` // optional directory served at "/"
	MaxPeers      int            `yaml:"max_peers"`
	Overflow      OverflowPolicy `yaml:"overflow"`
	SendBuffer    int            `yaml:"send_buffer"` // per-socket outgoing frame capacity
	PingInterval  time.Duration  `yaml:"ping_interval"`
	PongWait      time.Duration  `yaml:"pong_wait"`
	WriteWait     time.Duration  `yaml:"write_wait"`
	StatsInterval time.Duration  `yaml:"stats_interval"`
}

// SessionConfig configures the client session controller.
type SessionConfig struct {
	URL               string        `yaml:"url"` // relay WebSocket URL
	STUNServers       []string      `yaml:"stun_servers"`
	JoinOfferDelay    time.Duration `yaml:"join_offer_delay"`   // after peer-joined
	StatusOfferDelay  time.Duration `yaml:"status_offer_delay"` // after connection-status{2}
	MediaPollInterval time.Duration `yaml:"media_poll_interval"`
	MediaPollAttempts int           `yaml:"media_poll_attempts"`
	Renegotiate       bool          `yaml:"renegotiate"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	EventBuffer       int           `yaml:"event_buffer"`
}

// MediaConfig configures the local media source.
type MediaConfig struct {
	Devices []string `yaml:"devices"` // virtual camera device IDs, enumerated in order
	Deny    bool     `yaml:"deny"`    // simulate a permission denial
}

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{}
	c.EnsureDefaults()
	return c
}

// EnsureDefaults fills zero-valued fields with their defaults.
func (c *Config) EnsureDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	r := &c.Relay
	if r.Addr == "" {
		r.Addr = "0.0.0.0:3000"
	}
	if r.MaxPeers == 0 {
		r.MaxPeers = 2
	}
	if r.Overflow == "" {
		r.Overflow = OverflowReject
	}
	if r.SendBuffer == 0 {
		r.SendBuffer = 256
	}
	if r.PingInterval == 0 {
		r.PingInterval = 30 * time.Second
	}
	if r.PongWait == 0 {
		r.PongWait = 60 * time.Second
	}
	if r.WriteWait == 0 {
		r.WriteWait = 10 * time.Second
	}
	if r.StatsInterval == 0 {
		r.StatsInterval = 10 * time.Second
	}

	s := &c.Session
	if s.URL == "" {
		s.URL = "ws://127.0.0.1:3000/ws"
	}
	if len(s.STUNServers) == 0 {
		s.STUNServers = []string{
			"stun:stun.l.google.com:19302",
			"stun:stun1.l.google.com:19302",
		}
	}
	if s.JoinOfferDelay == 0 {
		s.JoinOfferDelay = 500 * time.Millisecond
	}
	if s.StatusOfferDelay == 0 {
		s.StatusOfferDelay = time.Second
	}
	if s.MediaPollInterval == 0 {
		s.MediaPollInterval = 100 * time.Millisecond
	}
	if s.MediaPollAttempts == 0 {
		s.MediaPollAttempts = 100
	}
	if s.HandshakeTimeout == 0 {
		s.HandshakeTimeout = 10 * time.Second
	}
	if s.EventBuffer == 0 {
		s.EventBuffer = 64
	}

	if len(c.Media.Devices) == 0 {
		c.Media.Devices = []string{"camera-0"}
	}
}

// Validate checks value ranges after defaults and overrides are applied.
func (c *Config) Validate() error {
	var errs []error

	if c.Role != "" && !c.Role.Valid() {
		errs = append(errs, fmt.Errorf("invalid role %q: must be relay, caller or receiver", c.Role))
	}
	if c.Relay.MaxPeers < 2 {
		errs = append(errs, fmt.Errorf("relay.max_peers must be at least 2, got %d", c.Relay.MaxPeers))
	}
	switch c.Relay.Overflow {
	case OverflowReject, OverflowObserve:
	default:
		errs = append(errs, fmt.Errorf("invalid relay.overflow %q: must be reject or observe", c.Relay.Overflow))
	}
	if c.Relay.SendBuffer < 1 {
		errs = append(errs, fmt.Errorf("relay.send_buffer must be positive"))
	}
	if c.Relay.PongWait <= c.Relay.PingInterval {
		errs = append(errs, fmt.Errorf("relay.pong_wait (%s) must exceed relay.ping_interval (%s)",
			c.Relay.PongWait, c.Relay.PingInterval))
	}
	if c.Session.MediaPollAttempts < 1 || c.Session.MediaPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("session media poll must have positive interval and attempts"))
	}
	if !strings.HasPrefix(c.Session.URL, "ws://") && !strings.HasPrefix(c.Session.URL, "wss://") {
		errs = append(errs, fmt.Errorf("session.url must be a ws:// or wss:// URL, got %q", c.Session.URL))
	}

	return errors.Join(errs...)
}

// MediaWait is the upper bound on waiting for local media before answering.
func (s SessionConfig) MediaWait() time.Duration {
	return s.MediaPollInterval * time.Duration(s.MediaPollAttempts)
}

// Save writes the configuration as YAML to path, or to the file it was
// loaded from when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = c.file
	}
	if path == "" {
		return fmt.Errorf("config file path is not set")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

type fileConfig Config

// Load builds the configuration: YAML file (if given), then .env and the
// process environment, then defaults.
func Load(file string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{file: file}

	if file != "" {
		// Feed through a method-less view so the feeder only sees fields.
		raw := (*fileConfig)(cfg)
		if err := config.New().AddFeeder(feeder.Yaml{Path: file}).AddStruct(raw).Feed(); err != nil {
			return nil, fmt.Errorf("load config %s: %w", file, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.EnsureDefaults()
	return cfg, nil
}

// applyEnv applies environment overrides. PORT and HOST follow the usual
// hosting-platform convention and only touch the relay listen address.
func (c *Config) applyEnv() error {
	if v := env("DUOCALL_ROLE"); v != "" {
		c.Role = Role(v)
	}
	if v := env("DUOCALL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := env("DUOCALL_ADDR"); v != "" {
		c.Relay.Addr = v
	}

	host, port := env("HOST"), env("PORT")
	if host != "" || port != "" {
		if host == "" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "3000"
		}
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.Relay.Addr = host + ":" + port
	}

	if v := env("DUOCALL_STATIC_DIR"); v != "" {
		c.Relay.StaticDir = v
	}
	if v := env("DUOCALL_OVERFLOW"); v != "" {
		c.Relay.Overflow = OverflowPolicy(v)
	}
	if v := env("DUOCALL_URL"); v != "" {
		c.Session.URL = v
	}
	if v := env("DUOCALL_RENEGOTIATE"); v != "" {
		c.Session.Renegotiate = v == "true" || v == "1" || v == "yes"
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
