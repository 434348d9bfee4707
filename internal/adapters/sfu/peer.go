package sfu

import (
	"context"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// peerConnection wraps the pion PeerConnection for the answering side
// of the SFU dialog: the SFU offers, we answer.
type peerConnection struct {
	pc     *webrtc.PeerConnection
	cancel context.CancelFunc

	onICE    func(webrtc.ICECandidateInit)
	onClosed func()
}

func defaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func newPeerConnection(cfg webrtc.Configuration) (*peerConnection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &peerConnection{pc: pc}, nil
}

func (c *peerConnection) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "sfu.peer").Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateDisconnected ||
			s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "sfu.peer").Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			if c.onClosed != nil {
				c.onClosed()
			}
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && c.onICE != nil {
			c.onICE(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		// Media flow is routed by pion; roster state follows the SFU's
		// subscription notifications, not raw RTP arrival.
		log.Debug().
			Str("module", "sfu.peer").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track flowing")
	})
}

// ApplyOfferAndCreateAnswer handles one SFU renegotiation round.
func (c *peerConnection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return c.pc.LocalDescription(), nil
}

func (c *peerConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

// AddLocalTrack attaches a local sample track to the PeerConnection.
func (c *peerConnection) AddLocalTrack(track *webrtc.TrackLocalStaticSample) (*webrtc.RTPSender, error) {
	return c.pc.AddTrack(track)
}

func (c *peerConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) { c.onICE = fn }
func (c *peerConnection) OnClosed(fn func())                             { c.onClosed = fn }

func (c *peerConnection) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "sfu.peer").Msg("close error")
		}
	}
}
