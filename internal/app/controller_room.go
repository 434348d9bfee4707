package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// CreateRoom issues a teacher room-create request and, on success,
// runs session bootstrap. The caller's goroutine carries the blocking
// waits; every state mutation goes through the dispatcher.
func (c *Controller) CreateRoom(ctx context.Context) error {
	if err := c.beginRoomOp(domain.RoleTeacher); err != nil {
		return err
	}
	ackCtx, cancel := context.WithTimeout(ctx, c.cfg.AckTimeout)
	ack, err := c.channel.CreateRoom(ackCtx, c.displayName())
	cancel()
	return c.afterAck(ctx, ack, err)
}

// JoinRoom issues a student room-join request for an existing room.
func (c *Controller) JoinRoom(ctx context.Context, roomID domain.RoomID) error {
	if roomID == "" {
		return ErrRoomRejected
	}
	if err := c.beginRoomOp(domain.RoleStudent); err != nil {
		return err
	}
	ackCtx, cancel := context.WithTimeout(ctx, c.cfg.AckTimeout)
	ack, err := c.channel.JoinRoom(ackCtx, roomID, c.displayName())
	cancel()
	return c.afterAck(ctx, ack, err)
}

// beginRoomOp validates role and state and transitions idle →
// connecting atomically on the dispatcher.
func (c *Controller) beginRoomOp(required domain.Role) error {
	return c.do(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.role == "" {
			return ErrNoSession
		}
		if c.role != required {
			return ErrRoleMismatch
		}
		switch c.status {
		case domain.StatusConnecting, domain.StatusLive, domain.StatusMediaBlocked:
			return ErrSessionBusy
		}
		c.status = domain.StatusConnecting
		return nil
	})
}

func (c *Controller) afterAck(ctx context.Context, ack core.RoomAck, err error) error {
	if err != nil {
		c.fail(domain.StatusError)
		return fmt.Errorf("%w: %v", ErrRoomRejected, err)
	}
	if !ack.OK {
		c.fail(domain.StatusError)
		return ErrRoomRejected
	}

	identity := domain.NewIdentity(c.roleLocked(), time.Now())
	if err := c.do(func() error {
		c.setSession(domain.StatusLive, ack.RoomID)
		c.mu.Lock()
		c.localID = identity
		c.mu.Unlock()
		return nil
	}); err != nil {
		return err
	}
	return c.bootstrap(ctx, ack.RoomID, identity)
}

// bootstrap performs token fetch → media session connect → local
// capture. Failures downgrade only the affected concern: token or
// endpoint problems end in error with no media session; a capture
// failure leaves the session live but media-blocked.
func (c *Controller) bootstrap(ctx context.Context, roomID domain.RoomID, identity domain.Identity) error {
	name := c.displayName()

	tok, err := c.tokens.Fetch(ctx, roomID, identity, name)
	if err != nil {
		c.fail(domain.StatusError)
		return fmt.Errorf("%w: %v", ErrTokenFetch, err)
	}
	if c.cfg.SFUURL == "" {
		c.fail(domain.StatusError)
		return ErrMediaConfigMissing
	}

	if err := c.media.Connect(ctx, c.cfg.SFUURL, tok.Token); err != nil {
		c.fail(domain.StatusError)
		return fmt.Errorf("media session connect: %w", err)
	}

	local := c.media.LocalParticipant()
	localID := local.ID
	if localID == "" {
		localID = identity
	}
	localName := local.Name
	if localName == "" {
		localName = name
	}
	if localName == "" {
		localName = "You"
	}

	// Seed the local entry muted and trackless; publish events correct
	// it once capture is up.
	c.post(func() {
		c.mu.Lock()
		c.localID = localID
		c.mu.Unlock()
		isLocal, muted := true, true
		c.roster.Upsert(localID, core.ParticipantUpdate{
			Name:       &localName,
			IsLocal:    &isLocal,
			VideoTrack: core.ClearTrack(),
			AudioTrack: core.ClearTrack(),
			VideoMuted: &muted,
			AudioMuted: &muted,
		})
	})

	if err := c.media.EnableLocalMedia(ctx); err != nil {
		log.Warn().Err(err).Str("module", "app.controller").Msg("local capture blocked")
		c.post(func() { c.setStatus(domain.StatusMediaBlocked) })
	} else {
		c.post(func() {
			c.mu.Lock()
			c.micEnabled = true
			c.camEnabled = true
			c.mu.Unlock()
		})
	}

	c.startProbe(roomID, localID)
	log.Info().Str("module", "app.controller").Str("room", string(roomID)).Str("identity", string(localID)).Msg("bootstrap complete")
	return nil
}

// startProbe arms the latency probe, unless the session was torn down
// while bootstrap was still in flight.
func (c *Controller) startProbe(roomID domain.RoomID, identity domain.Identity) {
	probe := NewLatencyProbe(c.cfg.PingPeriod, c.cfg.PingTimeout,
		func(ctx context.Context) error {
			return c.channel.PingEcho(ctx, roomID)
		},
		func(pingMs int) {
			if err := c.channel.ReportPing(roomID, identity, pingMs); err != nil {
				log.Debug().Err(err).Str("module", "app.probe").Msg("ping report failed")
			}
			ping := pingMs
			c.post(func() {
				c.roster.Upsert(identity, core.ParticipantUpdate{PingMs: &ping})
			})
		})

	c.post(func() {
		c.mu.RLock()
		status := c.status
		c.mu.RUnlock()
		if status != domain.StatusLive && status != domain.StatusMediaBlocked {
			return
		}
		c.probe = probe
		probe.Start(context.Background())
	})
}

// fail is a terminal transition: teardown first, then status, with
// roomId cleared.
func (c *Controller) fail(status domain.SessionStatus) {
	c.post(func() {
		c.teardown()
		c.setSession(status, "")
	})
}

func (c *Controller) setStatus(status domain.SessionStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	log.Info().Str("module", "app.controller").Str("status", string(status)).Msg("status")
}

func (c *Controller) displayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Controller) roleLocked() domain.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}
