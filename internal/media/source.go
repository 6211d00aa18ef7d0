// Package media provides the local capture side of a call: virtual camera and
// microphone devices backed by pion sample tracks.
package media

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duocall/internal/config"
)

var (
	// ErrPermissionDenied is returned when capture access is refused.
	ErrPermissionDenied = errors.New("camera/microphone access denied")
	// ErrDeviceNotFound is returned for an unknown video device ID.
	ErrDeviceNotFound = errors.New("video device not found")
)

var (
	audioCodec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	videoCodec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
)

// Device describes one enumerable video input.
type Device struct {
	ID    string
	Label string
}

// Source enumerates devices and hands out capture tracks.
type Source struct {
	devices  []string
	deny     bool
	streamID string
}

// NewSource creates a Source from the media configuration.
func NewSource(cfg config.MediaConfig, streamID string) *Source {
	return &Source{
		devices:  slices.Clone(cfg.Devices),
		deny:     cfg.Deny,
		streamID: streamID,
	}
}

// Devices lists the video inputs in enumeration order.
func (s *Source) Devices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Device, len(s.devices))
	for i, id := range s.devices {
		out[i] = Device{ID: id, Label: fmt.Sprintf("Virtual camera %d (%s)", i, id)}
	}
	return out, nil
}

// Acquire opens the microphone and the given camera (the first device when
// deviceID is empty).
func (s *Source) Acquire(ctx context.Context, deviceID string) (*LocalMedia, error) {
	video, err := s.AcquireVideo(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	audio, err := newLocalTrack(audioCodec, "audio", s.streamID, "microphone")
	if err != nil {
		video.Stop()
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	return &LocalMedia{StreamID: s.streamID, audio: audio, video: video}, nil
}

// AcquireVideo opens only a camera. It is used when switching cameras.
func (s *Source) AcquireVideo(ctx context.Context, deviceID string) (*LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.deny {
		return nil, ErrPermissionDenied
	}
	if len(s.devices) == 0 {
		return nil, ErrDeviceNotFound
	}
	if deviceID == "" {
		deviceID = s.devices[0]
	}
	if !slices.Contains(s.devices, deviceID) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	video, err := newLocalTrack(videoCodec, "video-"+deviceID, s.streamID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}
	return video, nil
}

// LocalMedia is the local stream: one audio and one video track.
type LocalMedia struct {
	StreamID string

	mu    sync.RWMutex
	audio *LocalTrack
	video *LocalTrack
}

// Audio returns the microphone track.
func (m *LocalMedia) Audio() *LocalTrack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.audio
}

// Video returns the active camera track.
func (m *LocalMedia) Video() *LocalTrack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.video
}

// Tracks returns audio then video, skipping missing tracks.
func (m *LocalMedia) Tracks() []*LocalTrack {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*LocalTrack
	for _, t := range []*LocalTrack{m.audio, m.video} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// SwapVideo installs next as the active camera track and returns the
// previous one. The previous track is not stopped here.
func (m *LocalMedia) SwapVideo(next *LocalTrack) *LocalTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.video
	m.video = next
	return prev
}

// Stop stops every track.
func (m *LocalMedia) Stop() {
	for _, t := range m.Tracks() {
		t.Stop()
	}
}
