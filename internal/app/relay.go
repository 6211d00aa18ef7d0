// Package app contains the top-level orchestration for the relay and call
// roles.
package app

import (
	"context"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/relay"
	"github.com/1ureka/duocall/internal/util"
)

// RunRelay serves the signaling relay until ctx is cancelled.
func RunRelay(ctx context.Context, cfg config.RelayConfig) error {
	util.LogInfo("relay capacity: %d peers, overflow policy: %s", cfg.MaxPeers, cfg.Overflow)
	if cfg.StaticDir != "" {
		util.LogInfo("serving static files from %s", cfg.StaticDir)
	}
	return relay.NewServer(cfg).ListenAndServe(ctx)
}
