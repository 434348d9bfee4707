package sfu

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// handleMessage routes one inbound control message. Notifications
// about participants with no resolvable id carry no addressable
// target and are dropped rather than raised.
func (s *Session) handleMessage(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "adapters.sfu").Msg("bad control json, dropped")
		return
	}

	switch msg.Type {
	case "welcome":
		s.handleWelcome(msg.Payload)
	case "offer":
		s.handleOffer(msg.Payload)
	case "candidate":
		s.handleCandidate(msg.Payload)
	case "participant:joined":
		s.handleParticipantJoined(msg.Payload)
	case "participant:left":
		s.handleParticipantLeft(msg.Payload)
	case "track:subscribed":
		s.handleTrackSubscribed(msg.Payload)
	case "track:unsubscribed":
		s.handleTrackUnsubscribed(msg.Payload)
	case "track:muted":
		s.handleMuteChanged(msg.Payload, true)
	case "track:unmuted":
		s.handleMuteChanged(msg.Payload, false)
	default:
		log.Debug().Str("module", "adapters.sfu").Str("type", msg.Type).Msg("unknown control message, dropped")
	}
}

func (s *Session) handleWelcome(raw json.RawMessage) {
	var w welcomePayload
	if err := json.Unmarshal(raw, &w); err != nil {
		log.Warn().Err(err).Str("module", "adapters.sfu").Msg("bad welcome payload")
		return
	}
	s.mu.Lock()
	welcome := s.welcome
	s.mu.Unlock()
	if welcome == nil {
		return
	}
	select {
	case welcome <- w:
	default:
	}
}

func (s *Session) handleOffer(raw json.RawMessage) {
	var p sdpPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.SDP == "" {
		log.Warn().Str("module", "adapters.sfu").Msg("bad offer payload, dropped")
		return
	}
	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return
	}
	answer, err := peer.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  p.SDP,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.sfu").Msg("apply offer failed")
		return
	}
	if err := s.sendMessage("answer", sdpPayload{SDP: answer.SDP}); err != nil {
		log.Error().Err(err).Str("module", "adapters.sfu").Msg("answer send failed")
	}
}

func (s *Session) handleCandidate(raw json.RawMessage) {
	var p candidatePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Candidate == "" {
		log.Warn().Str("module", "adapters.sfu").Msg("bad candidate payload, dropped")
		return
	}
	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return
	}
	if err := peer.AddICECandidate(p.toInit()); err != nil {
		log.Error().Err(err).Str("module", "adapters.sfu").Msg("add ice candidate failed")
	}
}

func (s *Session) handleParticipantJoined(raw json.RawMessage) {
	var p participantPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	info, ok := resolve(p.Participant)
	if !ok {
		return
	}
	s.mu.Lock()
	s.remotes[info.ID] = info
	s.mu.Unlock()
	s.emit(func() {
		if s.events.OnParticipantConnected != nil {
			s.events.OnParticipantConnected(info)
		}
	})
}

func (s *Session) handleParticipantLeft(raw json.RawMessage) {
	var p participantPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	info, ok := resolve(p.Participant)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.remotes, info.ID)
	s.mu.Unlock()
	s.emit(func() {
		if s.events.OnParticipantDisconnected != nil {
			s.events.OnParticipantDisconnected(info.ID)
		}
	})
}

func (s *Session) handleTrackSubscribed(raw json.RawMessage) {
	var p trackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	info, ok := resolve(p.Participant)
	if !ok {
		return
	}
	kind, ok := trackKind(p.Track.Kind)
	if !ok {
		return
	}
	s.mu.Lock()
	s.remotes[info.ID] = info
	s.mu.Unlock()
	muted := p.Track.Muted
	track := newRemoteTrack(p.Track.ID, kind)
	s.emit(func() {
		if s.events.OnTrackSubscribed != nil {
			s.events.OnTrackSubscribed(info, track, muted)
		}
	})
}

func (s *Session) handleTrackUnsubscribed(raw json.RawMessage) {
	var p trackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	info, ok := resolve(p.Participant)
	if !ok {
		return
	}
	kind, ok := trackKind(p.Track.Kind)
	if !ok {
		return
	}
	s.emit(func() {
		if s.events.OnTrackUnsubscribed != nil {
			s.events.OnTrackUnsubscribed(info.ID, kind)
		}
	})
}

func (s *Session) handleMuteChanged(raw json.RawMessage, muted bool) {
	var p mutePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	info, ok := resolve(p.Participant)
	if !ok {
		return
	}
	kind, ok := trackKind(p.Kind)
	if !ok {
		return
	}
	s.emit(func() {
		if s.events.OnTrackMuteChanged != nil {
			s.events.OnTrackMuteChanged(info.ID, kind, muted)
		}
	})
}
