package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// ChannelEvents returns the signaling callbacks. The adapter invokes
// them on the dispatcher, so handlers touch state directly.
func (c *Controller) ChannelEvents() core.ChannelEvents {
	return core.ChannelEvents{
		OnRoomEnd:    c.onRoomEnd,
		OnChat:       c.onChat,
		OnPingUpdate: c.onPingUpdate,
		OnClosed:     c.onChannelClosed,
	}
}

func (c *Controller) onRoomEnd() {
	log.Info().Str("module", "app.controller").Msg("room ended remotely")
	c.teardown()
	c.setSession(domain.StatusEnded, "")
}

func (c *Controller) onChat(msg domain.ChatMessage) {
	c.chat.Append(msg)
}

func (c *Controller) onPingUpdate(identity domain.Identity, pingMs int) {
	c.roster.Upsert(identity, core.ParticipantUpdate{PingMs: &pingMs})
}

// onChannelClosed ends the session on connection loss; no reconnection
// is attempted at this layer.
func (c *Controller) onChannelClosed(err error) {
	c.mu.RLock()
	status := c.status
	c.mu.RUnlock()
	switch status {
	case domain.StatusConnecting, domain.StatusLive, domain.StatusMediaBlocked:
		log.Warn().Err(err).Str("module", "app.controller").Msg("signaling channel lost")
		c.teardown()
		c.setSession(domain.StatusEnded, "")
	}
}

// MediaEvents returns the media session callbacks. The adapter invokes
// them on the dispatcher with ids already resolved; events without an
// id were dropped at the boundary.
func (c *Controller) MediaEvents() core.MediaEvents {
	return core.MediaEvents{
		OnParticipantConnected:    c.onParticipantConnected,
		OnParticipantDisconnected: c.onParticipantDisconnected,
		OnTrackSubscribed:         c.onTrackSubscribed,
		OnTrackUnsubscribed:       c.onTrackUnsubscribed,
		OnLocalTrackPublished:     c.onLocalTrackPublished,
		OnLocalTrackUnpublished:   c.onLocalTrackUnpublished,
		OnTrackMuteChanged:        c.onTrackMuteChanged,
	}
}

func (c *Controller) onParticipantConnected(info core.ParticipantInfo) {
	isLocal := false
	c.roster.Upsert(info.ID, core.ParticipantUpdate{Name: &info.Name, IsLocal: &isLocal})
}

func (c *Controller) onParticipantDisconnected(id domain.Identity) {
	c.roster.Remove(id)
}

func (c *Controller) onTrackSubscribed(info core.ParticipantInfo, track *domain.Track, muted bool) {
	if track == nil {
		return
	}
	u := core.ParticipantUpdate{Name: &info.Name}
	switch track.Kind {
	case domain.TrackVideo:
		u.VideoTrack = core.SetTrack(track)
		u.VideoMuted = &muted
	case domain.TrackAudio:
		u.AudioTrack = core.SetTrack(track)
		u.AudioMuted = &muted
	default:
		return
	}
	c.roster.Upsert(info.ID, u)
}

func (c *Controller) onTrackUnsubscribed(id domain.Identity, kind domain.TrackKind) {
	// Clearing the field forces the paired mute flag inside the roster.
	u := core.ParticipantUpdate{}
	switch kind {
	case domain.TrackVideo:
		u.VideoTrack = core.ClearTrack()
	case domain.TrackAudio:
		u.AudioTrack = core.ClearTrack()
	default:
		return
	}
	c.roster.Upsert(id, u)
}

func (c *Controller) onLocalTrackPublished(track *domain.Track, muted bool) {
	c.mu.RLock()
	localID := c.localID
	c.mu.RUnlock()
	if localID == "" || track == nil {
		return
	}
	u := core.ParticipantUpdate{}
	switch track.Kind {
	case domain.TrackVideo:
		u.VideoTrack = core.SetTrack(track)
		u.VideoMuted = &muted
	case domain.TrackAudio:
		u.AudioTrack = core.SetTrack(track)
		u.AudioMuted = &muted
	default:
		return
	}
	c.roster.Upsert(localID, u)
}

func (c *Controller) onLocalTrackUnpublished(kind domain.TrackKind) {
	c.mu.RLock()
	localID := c.localID
	c.mu.RUnlock()
	if localID == "" {
		return
	}
	c.onTrackUnsubscribed(localID, kind)
}

func (c *Controller) onTrackMuteChanged(id domain.Identity, kind domain.TrackKind, muted bool) {
	u := core.ParticipantUpdate{}
	switch kind {
	case domain.TrackVideo:
		u.VideoMuted = &muted
	case domain.TrackAudio:
		u.AudioMuted = &muted
	default:
		return
	}
	c.roster.Upsert(id, u)
}
