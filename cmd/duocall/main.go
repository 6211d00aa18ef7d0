// Command duocall is the CLI entry point.
//
// One binary plays all three parts of a two-party call: the signaling relay
// that pairs the two clients, and the caller or receiver side of the call.
//
// It can be launched interactively (no -role) or non-interactively via CLI
// flags (-role, -addr, -url, -config, -static, -write-config).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/duocall/internal/app"
	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	role := flag.String("role", "", "Role: relay, caller or receiver")
	addr := flag.String("addr", "", "Relay listen address, e.g. 0.0.0.0:3000 (relay only)")
	wsURLFlag := flag.String("url", "", "Relay WebSocket URL (caller/receiver only)")
	configFile := flag.String("config", "", "YAML configuration file")
	staticDir := flag.String("static", "", "Directory served at / by the relay")
	writeConfig := flag.String("write-config", "", "Write the effective configuration to this file and exit")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	if *role != "" {
		cfg.Role = config.Role(*role)
	}
	if *addr != "" {
		cfg.Relay.Addr = *addr
	}
	if *staticDir != "" {
		cfg.Relay.StaticDir = *staticDir
	}
	if *wsURLFlag != "" {
		wsURL, err := normalizeWSURL(*wsURLFlag)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg.Session.URL = wsURL
	}
	if *debugMode {
		cfg.LogLevel = "debug"
	}
	if err := util.SetLevel(cfg.LogLevel); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	pterm.Info.Println(fmt.Sprintf("Duocall — v%s", version))
	pterm.Println()

	if cfg.Role == "" && *writeConfig == "" {
		// No role anywhere: interactive mode.
		askRole(cfg, *wsURLFlag == "")
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("invalid configuration:\n%v", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		util.LogSuccess("configuration written to %s", *writeConfig)
		return
	}

	switch cfg.Role {
	case config.RoleRelay:
		runRelay(ctx, cfg)
	case config.RoleCaller, config.RoleReceiver:
		runCall(ctx, cfg)
	}
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runRelay serves the signaling relay until Ctrl+C.
func runRelay(ctx context.Context, cfg *config.Config) {
	if err := app.RunRelay(ctx, cfg.Relay); err != nil {
		util.LogError("relay stopped: %v", err)
		os.Exit(1)
	}
	util.LogInfo("relay closed")
}

// runCall runs one side of the call until Ctrl+C or hang-up.
func runCall(ctx context.Context, cfg *config.Config) {
	err := app.RunCall(ctx, cfg, os.Stdin)
	if err != nil && !errors.Is(err, context.Canceled) {
		util.LogError("call ended: %v", err)
		os.Exit(1)
	}
	util.LogInfo("call ended")
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askRole fills in the role (and relay URL for call roles) interactively.
func askRole(cfg *config.Config, promptURL bool) {
	choice, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{
			"Relay    — Pair two callers",
			"Caller   — Start the call",
			"Receiver — Answer the call",
		}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	switch {
	case strings.HasPrefix(choice, "Relay"):
		cfg.Role = config.RoleRelay
		return
	case strings.HasPrefix(choice, "Caller"):
		cfg.Role = config.RoleCaller
	default:
		cfg.Role = config.RoleReceiver
	}

	if promptURL {
		cfg.Session.URL = askURL(cfg.Session.URL)
	}
}

// normalizeWSURL validates and normalizes a raw WebSocket URL string. A
// missing path defaults to /ws.
func normalizeWSURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	} else if u.Scheme == "http" {
		scheme = "ws"
	}
	path := u.Path
	if path == "" || path == "/" {
		path = "/ws"
	}
	return fmt.Sprintf("%s://%s%s", scheme, u.Host, path), nil
}

// askURL prompts the user for a valid WebSocket URL until one is entered.
// An empty answer keeps def.
func askURL(def string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(fmt.Sprintf("Relay URL (empty for %s)", def)).
			Show()

		if strings.TrimSpace(raw) == "" {
			pterm.Println()
			return def
		}

		wsURL, err := normalizeWSURL(raw)
		if err == nil {
			pterm.Println()
			return wsURL
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
