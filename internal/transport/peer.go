package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duocall/internal/util"
)

// newAPI builds a pion API with the default audio/video codecs and pion's
// internal logs routed through our logger.
func newAPI() (*webrtc.API, error) {
	se := webrtc.SettingEngine{LoggerFactory: util.PionLoggerFactory{}}

	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	return webrtc.NewAPI(
		webrtc.WithSettingEngine(se),
		webrtc.WithMediaEngine(me),
	), nil
}

// newPeerConnection creates a PeerConnection configured with the given STUN
// servers. No TURN: connectivity is left to direct or STUN-assisted paths.
func newPeerConnection(stunServers []string) (*webrtc.PeerConnection, error) {
	api, err := newAPI()
	if err != nil {
		return nil, err
	}

	config := webrtc.Configuration{}
	if len(stunServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
	}
	return api.NewPeerConnection(config)
}
