package media

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// LocalTrack is a local capture track. Disabling it keeps the track attached
// to the peer connection but stops samples from being written, which is how
// mute and camera-off work without renegotiation.
type LocalTrack struct {
	*webrtc.TrackLocalStaticSample

	device  string
	enabled atomic.Bool
	stopped atomic.Bool
}

func newLocalTrack(codec webrtc.RTPCodecCapability, id, streamID, device string) (*LocalTrack, error) {
	raw, err := webrtc.NewTrackLocalStaticSample(codec, id, streamID)
	if err != nil {
		return nil, err
	}
	t := &LocalTrack{TrackLocalStaticSample: raw, device: device}
	t.enabled.Store(true)
	return t, nil
}

// Device returns the capture device this track was acquired from.
func (t *LocalTrack) Device() string { return t.device }

// Enabled reports whether samples are currently forwarded.
func (t *LocalTrack) Enabled() bool { return t.enabled.Load() }

// SetEnabled toggles sample forwarding.
func (t *LocalTrack) SetEnabled(on bool) { t.enabled.Store(on) }

// Stop releases the capture. A stopped track never forwards samples again.
func (t *LocalTrack) Stop() { t.stopped.Store(true) }

// Stopped reports whether Stop has been called.
func (t *LocalTrack) Stopped() bool { return t.stopped.Load() }

// WriteSample forwards a sample unless the track is disabled or stopped.
func (t *LocalTrack) WriteSample(s pionmedia.Sample) error {
	if t.stopped.Load() || !t.enabled.Load() {
		return nil
	}
	return t.TrackLocalStaticSample.WriteSample(s)
}
