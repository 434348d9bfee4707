package app

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// Config carries the controller's tunables.
type Config struct {
	SFUURL      string
	AckTimeout  time.Duration
	PingPeriod  time.Duration
	PingTimeout time.Duration
}

// Controller is the top-level session state machine. It owns identity
// assignment, the room lifecycle, bootstrap and teardown, and wires
// the signaling channel, media session, roster and chat log together.
//
// All session state is mutated on the dispatcher only; the mutex
// guards concurrent snapshot reads.
type Controller struct {
	dispatch core.Dispatch
	roster   *core.Roster
	chat     *core.ChatLog
	tokens   core.TokenProvider
	cfg      Config

	channel core.SignalChannel
	media   core.MediaSession
	probe   *LatencyProbe

	mu         sync.RWMutex
	role       domain.Role
	name       string
	roomID     domain.RoomID
	status     domain.SessionStatus
	localID    domain.Identity
	micEnabled bool
	camEnabled bool
}

func NewController(dispatch core.Dispatch, roster *core.Roster, chat *core.ChatLog, tokens core.TokenProvider, cfg Config) *Controller {
	return &Controller{
		dispatch: dispatch,
		roster:   roster,
		chat:     chat,
		tokens:   tokens,
		cfg:      cfg,
	}
}

// BindChannel attaches the signaling channel. Must happen before any
// room operation.
func (c *Controller) BindChannel(ch core.SignalChannel) { c.channel = ch }

// BindMedia attaches the media session implementation used at
// bootstrap.
func (c *Controller) BindMedia(ms core.MediaSession) { c.media = ms }

// Snapshot is a read-only view of the session for observers.
type Snapshot struct {
	Role          domain.Role          `json:"role"`
	Name          string               `json:"name"`
	RoomID        domain.RoomID        `json:"roomId"`
	Status        domain.SessionStatus `json:"status"`
	LocalIdentity domain.Identity      `json:"localIdentity"`
	MicEnabled    bool                 `json:"micEnabled"`
	CamEnabled    bool                 `json:"camEnabled"`

	Participants []domain.Participant `json:"-"`
	Messages     []domain.ChatMessage `json:"-"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	snap := Snapshot{
		Role:          c.role,
		Name:          c.name,
		RoomID:        c.roomID,
		Status:        c.status,
		LocalIdentity: c.localID,
		MicEnabled:    c.micEnabled,
		CamEnabled:    c.camEnabled,
	}
	c.mu.RUnlock()
	snap.Participants = c.roster.Snapshot()
	snap.Messages = c.chat.Messages()
	return snap
}

// SelectRole opens a session in idle state and announces role and name
// on the already-connected channel. A role change while a session is
// active destroys that session first, as leave does. Admin has no
// classroom session.
func (c *Controller) SelectRole(role domain.Role, name string) error {
	if role != domain.RoleTeacher && role != domain.RoleStudent {
		return ErrRoleMismatch
	}
	if err := domain.ValidateDisplayName(name); err != nil {
		return err
	}
	if c.channel == nil {
		return ErrChannelNotAttached
	}
	c.mu.RLock()
	roomID := c.roomID
	c.mu.RUnlock()
	if roomID != "" {
		if err := c.channel.LeaveRoom(roomID); err != nil {
			log.Warn().Err(err).Str("module", "app.controller").Msg("leave request failed")
		}
	}
	if err := c.do(func() error {
		if c.sessionActive() {
			c.teardown()
		}
		c.mu.Lock()
		c.role = role
		c.name = name
		c.roomID = ""
		c.status = domain.StatusIdle
		c.mu.Unlock()
		return nil
	}); err != nil {
		return err
	}
	log.Info().Str("module", "app.controller").Str("role", string(role)).Str("name", name).Msg("role selected")
	return c.channel.AnnounceRole(role, name)
}

// SetName changes the display name and re-announces it while
// connected.
func (c *Controller) SetName(name string) error {
	if err := domain.ValidateDisplayName(name); err != nil {
		return err
	}
	var role domain.Role
	if err := c.do(func() error {
		c.mu.Lock()
		c.name = name
		role = c.role
		c.mu.Unlock()
		return nil
	}); err != nil {
		return err
	}
	if role == "" {
		return nil
	}
	return c.channel.AnnounceRole(role, name)
}

// SendChat publishes a message to the room. The local log is not
// appended directly; the server echoes the message back on the
// channel.
func (c *Controller) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.channel == nil {
		return ErrChannelNotAttached
	}
	c.mu.RLock()
	roomID, sender := c.roomID, c.name
	c.mu.RUnlock()
	if roomID == "" {
		return ErrNoSession
	}
	if sender == "" {
		sender = "Guest"
	}
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
	}
	return c.channel.SendChat(roomID, msg)
}

// ToggleMicrophone flips local audio publishing and mirrors the mute
// flag on the local roster entry. No other entry changes.
func (c *Controller) ToggleMicrophone() error {
	return c.toggleLocal(domain.TrackAudio)
}

// ToggleCamera flips local video publishing and mirrors the mute flag
// on the local roster entry.
func (c *Controller) ToggleCamera() error {
	return c.toggleLocal(domain.TrackVideo)
}

func (c *Controller) toggleLocal(kind domain.TrackKind) error {
	c.mu.RLock()
	localID := c.localID
	enabled := c.micEnabled
	if kind == domain.TrackVideo {
		enabled = c.camEnabled
	}
	c.mu.RUnlock()
	if localID == "" {
		return ErrNoSession
	}

	next := !enabled
	var err error
	if kind == domain.TrackAudio {
		err = c.media.SetMicrophoneEnabled(next)
	} else {
		err = c.media.SetCameraEnabled(next)
	}
	if err != nil {
		return err
	}

	muted := !next
	c.post(func() {
		c.mu.Lock()
		if kind == domain.TrackAudio {
			c.micEnabled = next
		} else {
			c.camEnabled = next
		}
		c.mu.Unlock()
		if kind == domain.TrackAudio {
			c.roster.Upsert(localID, core.ParticipantUpdate{AudioMuted: &muted})
		} else {
			c.roster.Upsert(localID, core.ParticipantUpdate{VideoMuted: &muted})
		}
	})
	return nil
}

// Leave exits the room without ending it. Teardown runs before the
// status flips back to idle.
func (c *Controller) Leave() error {
	c.mu.RLock()
	roomID := c.roomID
	c.mu.RUnlock()
	if roomID != "" {
		if err := c.channel.LeaveRoom(roomID); err != nil {
			log.Warn().Err(err).Str("module", "app.controller").Msg("leave request failed")
		}
	}
	return c.do(func() error {
		c.teardown()
		c.setSession(domain.StatusIdle, "")
		return nil
	})
}

// End terminates the room for everyone. Teacher-owned rooms only.
func (c *Controller) End() error {
	c.mu.RLock()
	roomID, role := c.roomID, c.role
	c.mu.RUnlock()
	if role != domain.RoleTeacher {
		return ErrRoleMismatch
	}
	if roomID != "" {
		if err := c.channel.EndRoom(roomID); err != nil {
			log.Warn().Err(err).Str("module", "app.controller").Msg("end request failed")
		}
	}
	return c.do(func() error {
		c.teardown()
		c.setSession(domain.StatusEnded, "")
		return nil
	})
}

// teardown runs on the dispatcher. The media disconnect is issued
// before any state clears, so a late in-flight media event cannot
// resurrect a participant into a roster the user believes is empty.
func (c *Controller) teardown() {
	if c.probe != nil {
		c.probe.Stop()
		c.probe = nil
	}
	if c.media != nil {
		c.media.Disconnect()
	}
	c.roster.Clear()
	c.chat.Clear()
	c.mu.Lock()
	c.localID = ""
	c.micEnabled = false
	c.camEnabled = false
	c.mu.Unlock()
	log.Info().Str("module", "app.controller").Msg("session torn down")
}

// sessionActive reports whether a session is in progress or a room is
// still attached.
func (c *Controller) sessionActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.status {
	case domain.StatusConnecting, domain.StatusLive, domain.StatusMediaBlocked:
		return true
	}
	return c.roomID != ""
}

func (c *Controller) setSession(status domain.SessionStatus, roomID domain.RoomID) {
	c.mu.Lock()
	c.status = status
	c.roomID = roomID
	c.mu.Unlock()
	log.Info().Str("module", "app.controller").Str("status", string(status)).Str("room", string(roomID)).Msg("status")
}

// do runs fn on the dispatcher and waits for it. Only called from
// command goroutines, never from inside a handler.
func (c *Controller) do(fn func() error) error {
	errCh := make(chan error, 1)
	if !c.dispatch(func() { errCh <- fn() }) {
		return ErrDispatcherStopped
	}
	return <-errCh
}

// post runs fn on the dispatcher without waiting.
func (c *Controller) post(fn func()) {
	if !c.dispatch(fn) {
		log.Debug().Str("module", "app.controller").Msg("post dropped, dispatcher stopped")
	}
}
