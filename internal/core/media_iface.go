package core

import (
	"context"

	"github.com/dkeye/Classroom/internal/domain"
)

// ParticipantInfo identifies a participant as reported by the media
// session. ID is the identity, falling back to the session-assigned
// handle when identity is absent.
type ParticipantInfo struct {
	ID   domain.Identity
	Name string
}

// MediaSession wraps one connect-use-disconnect lifecycle against the
// SFU. Events with no resolvable participant id are dropped by the
// implementation rather than surfaced.
type MediaSession interface {
	// Connect establishes the media session. Failure is a fatal
	// bootstrap error. Already-connected remote participants are
	// replayed through OnParticipantConnected after connect.
	Connect(ctx context.Context, endpoint, token string) error

	// EnableLocalMedia acquires microphone and camera and publishes
	// them. Failure means local capture is blocked; the session stays
	// connected.
	EnableLocalMedia(ctx context.Context) error

	SetMicrophoneEnabled(enabled bool) error
	SetCameraEnabled(enabled bool) error

	LocalParticipant() ParticipantInfo
	RemoteParticipants() []ParticipantInfo

	// Disconnect releases the session and local capture. Idempotent.
	Disconnect()
}

// MediaEvents are the media session callbacks. All callbacks run on
// the session dispatcher.
type MediaEvents struct {
	OnParticipantConnected    func(info ParticipantInfo)
	OnParticipantDisconnected func(id domain.Identity)

	// OnTrackSubscribed delivers an owned remote track handle.
	OnTrackSubscribed func(info ParticipantInfo, track *domain.Track, muted bool)
	// OnTrackUnsubscribed means the track is gone; the owning field
	// must be cleared and its mute flag forced to muted.
	OnTrackUnsubscribed func(id domain.Identity, kind domain.TrackKind)

	OnLocalTrackPublished   func(track *domain.Track, muted bool)
	OnLocalTrackUnpublished func(kind domain.TrackKind)

	OnTrackMuteChanged func(id domain.Identity, kind domain.TrackKind, muted bool)
}
