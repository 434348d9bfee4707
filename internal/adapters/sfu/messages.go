package sfu

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// Control link wire types. The SFU pushes participant and publication
// notifications; SDP and ICE ride the same link.

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wireParticipant struct {
	SID      string `json:"sid"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

type wireTrack struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Muted bool   `json:"muted"`
}

type welcomePayload struct {
	Self         wireParticipant   `json:"self"`
	Participants []wireParticipant `json:"participants"`
}

type participantPayload struct {
	Participant wireParticipant `json:"participant"`
}

type trackPayload struct {
	Participant wireParticipant `json:"participant"`
	Track       wireTrack       `json:"track"`
}

type mutePayload struct {
	Participant wireParticipant `json:"participant"`
	Kind        string          `json:"kind"`
	Muted       bool            `json:"muted"`
}

type joinPayload struct {
	Token string `json:"token"`
}

type sdpPayload struct {
	SDP string `json:"sdp"`
}

type candidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        string  `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// toInit maps a wire candidate to pion's init form. Fields absent on
// the wire stay absent; an omitted line index is unknown, not 0.
func (p candidatePayload) toInit() webrtc.ICECandidateInit {
	init := webrtc.ICECandidateInit{Candidate: p.Candidate}
	if p.SDPMid != "" {
		mid := p.SDPMid
		init.SDPMid = &mid
	}
	init.SDPMLineIndex = p.SDPMLineIndex
	return init
}

// resolve maps a wire participant to its roster identity: identity
// first, session-assigned handle as fallback. Participants with
// neither carry no addressable target and are dropped by the caller.
func resolve(p wireParticipant) (core.ParticipantInfo, bool) {
	id := p.Identity
	if id == "" {
		id = p.SID
	}
	if id == "" {
		return core.ParticipantInfo{}, false
	}
	name := p.Name
	if name == "" {
		name = p.Identity
	}
	if name == "" {
		name = "Guest"
	}
	return core.ParticipantInfo{ID: domain.Identity(id), Name: name}, true
}

// newRemoteTrack builds an owned handle for a subscribed remote
// track. Remote handles hold no local resource, so release is nil.
func newRemoteTrack(id string, kind domain.TrackKind) *domain.Track {
	if id == "" {
		id = uuid.NewString()
	}
	return domain.NewTrack(id, kind, nil)
}

func trackKind(s string) (domain.TrackKind, bool) {
	switch s {
	case "audio":
		return domain.TrackAudio, true
	case "video":
		return domain.TrackVideo, true
	}
	return "", false
}
