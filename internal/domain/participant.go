package domain

type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Track is one audio or video media unit. It is owned by exactly one
// Participant field at a time; the roster releases a track when it is
// replaced or its owner is removed.
type Track struct {
	ID      string
	Kind    TrackKind
	release func()
}

// NewTrack avoids raw literals in adapters and keeps construction obvious.
// release may be nil for tracks without an underlying resource.
func NewTrack(id string, kind TrackKind, release func()) *Track {
	return &Track{ID: id, Kind: kind, release: release}
}

// Release frees the underlying media resource. Safe to call on nil.
func (t *Track) Release() {
	if t == nil || t.release == nil {
		return
	}
	t.release()
}

// Participant is one roster entry, merged from both event streams.
type Participant struct {
	ID         Identity
	Name       string
	IsLocal    bool
	VideoTrack *Track
	AudioTrack *Track
	VideoMuted bool
	AudioMuted bool
	PingMs     *int
}

// AudibleAudio returns the audio track that may be attached to an
// audible sink. The local participant's own audio never is.
func (p *Participant) AudibleAudio() *Track {
	if p.IsLocal {
		return nil
	}
	return p.AudioTrack
}
