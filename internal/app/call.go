package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/protocol"
	"github.com/1ureka/duocall/internal/session"
	"github.com/1ureka/duocall/internal/signaling"
	"github.com/1ureka/duocall/internal/util"
)

// Feature envelopes understood by the CLI.
const (
	typePulse    protocol.Type = "pulse"
	typeReaction protocol.Type = "reaction"
)

type reaction struct {
	Reaction string `json:"reaction"`
}

// RunCall joins the relay as caller or receiver and runs the call session
// until ctx is cancelled, the user hangs up, or the relay goes away.
// Keyboard commands are read line by line from in.
func RunCall(ctx context.Context, cfg *config.Config, in io.Reader) error {
	util.LogInfo("connecting to relay %s as %s", cfg.Session.URL, cfg.Role)
	sig, err := signaling.Dial(ctx, cfg.Session.URL, cfg.Session.HandshakeTimeout)
	if err != nil {
		return err
	}

	c, err := session.New(session.Options{
		Role:     cfg.Role,
		Config:   cfg.Session,
		Signaler: sig,
		Media:    media.NewSource(cfg.Media, "duocall-"+string(cfg.Role)),
		NewPeer:  session.TransportFactory(cfg.Session.STUNServers),
	})
	if err != nil {
		sig.Close()
		return err
	}

	c.OnStatus(func(st session.Status) {
		util.LogDebug("[%s] %s (remote tracks: %d, queued candidates: %d)",
			st.State, st.Text, st.RemoteTracks, st.QueuedCandidates)
	})
	c.Handle(typePulse, func(*protocol.Envelope) {
		util.LogInfo("peer sent a pulse")
	})
	c.Handle(typeReaction, func(env *protocol.Envelope) {
		var r reaction
		if err := env.Unmarshal(&r); err != nil {
			util.LogWarning("invalid reaction: %v", err)
			return
		}
		util.LogInfo("peer reacted: %s", r.Reaction)
	})

	if in != nil {
		printControls()
		go readControls(ctx, c, in)
	}

	err = c.Run(ctx)
	if errors.Is(err, session.ErrRelayClosed) {
		if cause := sig.Err(); cause != nil {
			return fmt.Errorf("%w: %v", err, cause)
		}
	}
	return err
}

// callControls is the part of a session driven from the keyboard.
type callControls interface {
	ToggleMicrophone() (bool, error)
	ToggleCamera() (bool, error)
	SwitchCamera(ctx context.Context) error
	Send(t protocol.Type, payload any) error
	EndCall() error
}

func printControls() {
	util.LogInfo("controls: m = mic, v = camera, s = switch camera, p = pulse, r <text> = reaction, q = hang up")
}

// readControls executes one command per input line until in is exhausted,
// ctx is done, or the user hangs up.
func readControls(ctx context.Context, c callControls, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		switch cmd {
		case "":
			continue

		case "m":
			on, err := c.ToggleMicrophone()
			report("microphone", on, err)

		case "v":
			on, err := c.ToggleCamera()
			report("camera", on, err)

		case "s":
			if err := c.SwitchCamera(ctx); err != nil {
				util.LogWarning("switch camera: %v", err)
			}

		case "p":
			if err := c.Send(typePulse, nil); err != nil {
				util.LogWarning("send pulse: %v", err)
			}

		case "r":
			if arg == "" {
				util.LogWarning("usage: r <reaction>")
				continue
			}
			if err := c.Send(typeReaction, reaction{Reaction: arg}); err != nil {
				util.LogWarning("send reaction: %v", err)
			}

		case "q":
			if err := c.EndCall(); err != nil {
				util.LogWarning("end call: %v", err)
			}
			return

		case "?", "h", "help":
			printControls()

		default:
			util.LogWarning("unknown command %q", cmd)
		}
	}
}

func report(what string, on bool, err error) {
	if err != nil {
		util.LogWarning("toggle %s: %v", what, err)
		return
	}
	state := "off"
	if on {
		state = "on"
	}
	util.LogInfo("%s %s", what, state)
}
