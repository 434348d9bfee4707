package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

type rolePayload struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

type roomPayload struct {
	RoomID domain.RoomID `json:"roomId,omitempty"`
	Name   string        `json:"name,omitempty"`
}

type chatPayload struct {
	ID        string        `json:"id,omitempty"`
	RoomID    domain.RoomID `json:"roomId,omitempty"`
	Text      string        `json:"text"`
	Sender    string        `json:"sender,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
}

type pingReportPayload struct {
	RoomID   domain.RoomID   `json:"roomId"`
	Identity domain.Identity `json:"identity"`
	PingMs   int             `json:"pingMs"`
}

// AnnounceRole emits role:selected. Called on connect and whenever
// role or name changes while connected.
func (c *Client) AnnounceRole(role domain.Role, name string) error {
	return c.emit("role:selected", rolePayload{Role: string(role), Name: name})
}

func (c *Client) CreateRoom(ctx context.Context, name string) (core.RoomAck, error) {
	return c.roomRequest(ctx, "room:create", roomPayload{Name: name})
}

func (c *Client) JoinRoom(ctx context.Context, roomID domain.RoomID, name string) (core.RoomAck, error) {
	return c.roomRequest(ctx, "room:join", roomPayload{RoomID: roomID, Name: name})
}

func (c *Client) roomRequest(ctx context.Context, msgType string, p roomPayload) (core.RoomAck, error) {
	raw, err := c.request(ctx, msgType, p)
	if err != nil {
		return core.RoomAck{}, err
	}
	var ack core.RoomAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return core.RoomAck{}, err
	}
	return ack, nil
}

func (c *Client) LeaveRoom(roomID domain.RoomID) error {
	return c.emit("room:leave", roomPayload{RoomID: roomID})
}

func (c *Client) EndRoom(roomID domain.RoomID) error {
	return c.emit("room:end", roomPayload{RoomID: roomID})
}

func (c *Client) SendChat(roomID domain.RoomID, msg domain.ChatMessage) error {
	if !c.chats.Allow(time.Now()) {
		log.Warn().Str("module", "adapters.signal").Msg("chat message dropped by rate limit")
		return ErrRateLimited
	}
	return c.emit("chat:message", chatPayload{
		ID:        msg.ID,
		RoomID:    roomID,
		Text:      msg.Text,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp.Format(time.RFC3339),
	})
}

// PingEcho performs one acknowledged round trip; the ack payload is
// not inspected, only its arrival matters.
func (c *Client) PingEcho(ctx context.Context, roomID domain.RoomID) error {
	_, err := c.request(ctx, "ping:echo", roomPayload{RoomID: roomID})
	return err
}

func (c *Client) ReportPing(roomID domain.RoomID, identity domain.Identity, pingMs int) error {
	return c.emit("ping:report", pingReportPayload{RoomID: roomID, Identity: identity, PingMs: pingMs})
}
