package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Classroom/internal/domain"
)

// TrackField is a tri-state track update: absent (leave untouched),
// set, or clear. Clearing always forces the paired mute flag to muted,
// a track that no longer exists cannot be unmuted.
type TrackField struct {
	set   bool
	track *domain.Track
}

func SetTrack(t *domain.Track) TrackField { return TrackField{set: true, track: t} }
func ClearTrack() TrackField              { return TrackField{set: true} }

// ParticipantUpdate is a partial-field merge. Nil pointers and unset
// track fields leave the stored value untouched.
type ParticipantUpdate struct {
	Name       *string
	IsLocal    *bool
	VideoTrack TrackField
	AudioTrack TrackField
	VideoMuted *bool
	AudioMuted *bool
	PingMs     *int
}

// Roster merges participant facts from the signaling and media streams
// into one mapping keyed by identity. Upsert is the single mutation
// primitive for both streams; merges are field-level, so updates
// targeting disjoint fields commute.
//
// All logical mutation happens on the session dispatcher; the mutex
// only guards snapshot reads from other goroutines.
type Roster struct {
	mu   sync.RWMutex
	byID map[domain.Identity]*domain.Participant
}

func NewRoster() *Roster {
	return &Roster{byID: make(map[domain.Identity]*domain.Participant)}
}

// Upsert creates the participant on first reference from either stream
// and applies a field-level merge afterwards. An empty update on an
// existing id changes nothing.
func (r *Roster) Upsert(id domain.Identity, u ParticipantUpdate) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		p = &domain.Participant{ID: id}
		r.byID[id] = p
		log.Debug().Str("module", "core.roster").Str("id", string(id)).Msg("participant created")
	}

	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.IsLocal != nil {
		p.IsLocal = *u.IsLocal
	}
	if u.VideoTrack.set {
		replaceTrack(&p.VideoTrack, u.VideoTrack.track)
		if u.VideoTrack.track == nil {
			p.VideoMuted = true
		}
	}
	if u.AudioTrack.set {
		replaceTrack(&p.AudioTrack, u.AudioTrack.track)
		if u.AudioTrack.track == nil {
			p.AudioMuted = true
		}
	}
	if u.VideoMuted != nil {
		p.VideoMuted = *u.VideoMuted
	}
	if u.AudioMuted != nil {
		p.AudioMuted = *u.AudioMuted
	}
	if u.PingMs != nil {
		ping := *u.PingMs
		p.PingMs = &ping
	}
}

// replaceTrack swaps the owned handle, releasing the previous one.
// Tracks never float without an owner.
func replaceTrack(slot **domain.Track, next *domain.Track) {
	if *slot == next {
		return
	}
	(*slot).Release()
	*slot = next
}

// Remove deletes the participant and releases its tracks. Used only on
// confirmed disconnection; a later Upsert with the same id is a
// legitimate re-join starting from a fresh entry.
func (r *Roster) Remove(id domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return
	}
	p.VideoTrack.Release()
	p.AudioTrack.Release()
	delete(r.byID, id)
	log.Debug().Str("module", "core.roster").Str("id", string(id)).Msg("participant removed")
}

// Clear drops every entry, releasing all tracks. Used on teardown.
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		p.VideoTrack.Release()
		p.AudioTrack.Release()
	}
	r.byID = make(map[domain.Identity]*domain.Participant)
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Get returns a copy of the participant's current state.
func (r *Roster) Get(id domain.Identity) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// Snapshot returns a copy of all entries ordered by id.
func (r *Roster) Snapshot() []domain.Participant {
	r.mu.RLock()
	out := lo.MapToSlice(r.byID, func(_ domain.Identity, p *domain.Participant) domain.Participant {
		return *p
	})
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
