package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duocall/internal/util"
)

// EndCall stops local media, closes the peer connection and the relay
// socket, and makes Run return. Calling it on an ended session is a no-op.
func (c *Controller) EndCall() error {
	err := c.do(func() error {
		util.LogInfo("ending call")
		c.teardown()
		return nil
	})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// SwitchCamera moves the outgoing video to the next camera, round robin.
// The sender's track is replaced in place, so no renegotiation happens.
// With one camera or none it does nothing.
func (c *Controller) SwitchCamera(ctx context.Context) error {
	return c.do(func() error {
		if c.local == nil {
			return ErrNoLocalMedia
		}

		devices, err := c.src.Devices(ctx)
		if err != nil {
			return fmt.Errorf("enumerate cameras: %w", err)
		}
		if len(devices) <= 1 {
			util.LogInfo("only one camera available")
			return nil
		}

		if current := c.local.Video(); current != nil {
			current.Stop()
		}

		c.deviceIdx = (c.deviceIdx + 1) % len(devices)
		next, err := c.src.AcquireVideo(ctx, devices[c.deviceIdx].ID)
		if err != nil {
			return fmt.Errorf("switch camera: %w", err)
		}
		c.local.SwapVideo(next)

		if c.peer != nil {
			if err := c.peer.ReplaceTrack(webrtc.RTPCodecTypeVideo, next); err != nil {
				return fmt.Errorf("replace video track: %w", err)
			}
		}

		util.LogInfo("camera switched to %s", devices[c.deviceIdx].Label)
		return nil
	})
}

// ToggleMicrophone flips the local audio track on or off and returns the
// new state. The track stays attached, so nothing is renegotiated.
func (c *Controller) ToggleMicrophone() (bool, error) {
	return c.toggle(webrtc.RTPCodecTypeAudio)
}

// ToggleCamera flips the local video track on or off and returns the new
// state.
func (c *Controller) ToggleCamera() (bool, error) {
	return c.toggle(webrtc.RTPCodecTypeVideo)
}

func (c *Controller) toggle(kind webrtc.RTPCodecType) (bool, error) {
	var enabled bool
	err := c.do(func() error {
		if c.local == nil {
			return ErrNoLocalMedia
		}

		track := c.local.Audio()
		if kind == webrtc.RTPCodecTypeVideo {
			track = c.local.Video()
		}
		if track == nil {
			return ErrNoLocalMedia
		}

		enabled = !track.Enabled()
		track.SetEnabled(enabled)

		state := "off"
		if enabled {
			state = "on"
		}
		util.LogInfo("%s %s", kind, state)
		return nil
	})
	return enabled, err
}
