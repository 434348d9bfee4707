package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Classroom/internal/domain"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

func TestRoster_Upsert_CreatesOnFirstReference(t *testing.T) {
	req := require.New(t)
	r := NewRoster()

	r.Upsert("p1", ParticipantUpdate{Name: strPtr("Ada")})

	req.Equal(1, r.Len())
	p, ok := r.Get("p1")
	req.True(ok)
	req.Equal("Ada", p.Name)
	req.False(p.IsLocal)
	req.Nil(p.PingMs)
}

func TestRoster_Upsert_EmptyUpdate_ChangesNothing(t *testing.T) {
	req := require.New(t)
	r := NewRoster()
	muted := true
	r.Upsert("p1", ParticipantUpdate{
		Name:       strPtr("Ada"),
		AudioMuted: &muted,
		PingMs:     intPtr(42),
	})
	before, _ := r.Get("p1")

	r.Upsert("p1", ParticipantUpdate{})

	after, ok := r.Get("p1")
	req.True(ok)
	req.Equal(before, after)
	req.Equal(1, r.Len())
}

func TestRoster_Upsert_EmptyID_Dropped(t *testing.T) {
	r := NewRoster()
	r.Upsert("", ParticipantUpdate{Name: strPtr("ghost")})
	require.Zero(t, r.Len())
}

func TestRoster_DisjointFieldMerge_OrderIndependent(t *testing.T) {
	req := require.New(t)

	// Ping from signaling, name and track from media, applied in both
	// orders. Final state must be the union of the latest value per
	// field.
	ping := ParticipantUpdate{PingMs: intPtr(37)}
	media := ParticipantUpdate{
		Name:       strPtr("Grace"),
		IsLocal:    boolPtr(false),
		VideoTrack: SetTrack(domain.NewTrack("v1", domain.TrackVideo, nil)),
		VideoMuted: boolPtr(false),
	}

	first := NewRoster()
	first.Upsert("p2", ping)
	first.Upsert("p2", media)

	second := NewRoster()
	second.Upsert("p2", media)
	second.Upsert("p2", ping)

	a, _ := first.Get("p2")
	b, _ := second.Get("p2")
	req.Equal("Grace", a.Name)
	req.Equal(a.Name, b.Name)
	req.NotNil(a.PingMs)
	req.NotNil(b.PingMs)
	req.Equal(*a.PingMs, *b.PingMs)
	req.NotNil(a.VideoTrack)
	req.NotNil(b.VideoTrack)
	req.Equal(a.VideoTrack.ID, b.VideoTrack.ID)
	req.Equal(1, first.Len())
	req.Equal(1, second.Len())
}

func TestRoster_Upsert_NoDuplicateIDs(t *testing.T) {
	req := require.New(t)
	r := NewRoster()
	for i := 0; i < 5; i++ {
		r.Upsert("p1", ParticipantUpdate{PingMs: intPtr(i)})
		r.Upsert("p2", ParticipantUpdate{})
	}
	r.Remove("p2")
	r.Upsert("p2", ParticipantUpdate{})

	req.Equal(2, r.Len())
	seen := map[domain.Identity]bool{}
	for _, p := range r.Snapshot() {
		req.False(seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestRoster_ClearTrack_ForcesMuted(t *testing.T) {
	req := require.New(t)
	r := NewRoster()
	unmuted := false
	r.Upsert("p1", ParticipantUpdate{
		AudioTrack: SetTrack(domain.NewTrack("a1", domain.TrackAudio, nil)),
		AudioMuted: &unmuted,
	})

	r.Upsert("p1", ParticipantUpdate{AudioTrack: ClearTrack()})

	p, _ := r.Get("p1")
	req.Nil(p.AudioTrack)
	req.True(p.AudioMuted, "a track that no longer exists cannot be unmuted")
}

func TestRoster_ReplaceTrack_ReleasesPrevious(t *testing.T) {
	req := require.New(t)
	r := NewRoster()
	released := 0
	old := domain.NewTrack("v1", domain.TrackVideo, func() { released++ })
	r.Upsert("p1", ParticipantUpdate{VideoTrack: SetTrack(old)})

	// Same handle again: no release.
	r.Upsert("p1", ParticipantUpdate{VideoTrack: SetTrack(old)})
	req.Zero(released)

	r.Upsert("p1", ParticipantUpdate{VideoTrack: SetTrack(domain.NewTrack("v2", domain.TrackVideo, nil))})
	req.Equal(1, released)

	p, _ := r.Get("p1")
	req.Equal("v2", p.VideoTrack.ID)
}

func TestRoster_Remove_ReleasesTracksAndForgets(t *testing.T) {
	req := require.New(t)
	r := NewRoster()
	released := 0
	r.Upsert("p1", ParticipantUpdate{
		VideoTrack: SetTrack(domain.NewTrack("v1", domain.TrackVideo, func() { released++ })),
		AudioTrack: SetTrack(domain.NewTrack("a1", domain.TrackAudio, func() { released++ })),
		PingMs:     intPtr(12),
	})

	r.Remove("p1")

	req.Zero(r.Len())
	req.Equal(2, released)

	// A fresh upsert is a legitimate re-join starting clean.
	r.Upsert("p1", ParticipantUpdate{Name: strPtr("back")})
	p, ok := r.Get("p1")
	req.True(ok)
	req.Nil(p.PingMs)
	req.Nil(p.VideoTrack)
}

func TestRoster_Remove_UnknownID_NoOp(t *testing.T) {
	r := NewRoster()
	r.Upsert("p1", ParticipantUpdate{})
	r.Remove("p9")
	require.Equal(t, 1, r.Len())
}

func TestRoster_Clear_ReleasesEverything(t *testing.T) {
	req := require.New(t)
	r := NewRoster()
	released := 0
	r.Upsert("p1", ParticipantUpdate{
		AudioTrack: SetTrack(domain.NewTrack("a1", domain.TrackAudio, func() { released++ })),
	})
	r.Upsert("p2", ParticipantUpdate{
		VideoTrack: SetTrack(domain.NewTrack("v1", domain.TrackVideo, func() { released++ })),
	})

	r.Clear()

	req.Zero(r.Len())
	req.Equal(2, released)
}

func TestRoster_Snapshot_SortedCopies(t *testing.T) {
	req := require.New(t)
	r := NewRoster()
	r.Upsert("b", ParticipantUpdate{})
	r.Upsert("a", ParticipantUpdate{})
	r.Upsert("c", ParticipantUpdate{})

	snap := r.Snapshot()
	req.Len(snap, 3)
	req.Equal(domain.Identity("a"), snap[0].ID)
	req.Equal(domain.Identity("c"), snap[2].ID)

	// Mutating the snapshot must not leak into the roster.
	snap[0].Name = "mutated"
	p, _ := r.Get("a")
	req.Empty(p.Name)
}
