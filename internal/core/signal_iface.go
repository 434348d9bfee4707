package core

import (
	"context"

	"github.com/dkeye/Classroom/internal/domain"
)

// Dispatch hands a closure to the single-threaded session dispatcher.
// It reports false when the dispatcher is stopped and the closure was
// dropped. Adapters must route every roster/chat/state mutation
// through it.
type Dispatch func(fn func()) bool

// RoomAck is the acknowledgment of a room create/join request.
type RoomAck struct {
	OK     bool          `json:"ok"`
	RoomID domain.RoomID `json:"roomId"`
}

// SignalChannel is the typed surface of the signaling connection.
// One connect-use-close lifecycle per active session; the owner must
// Close() it. No reconnection is attempted on loss.
type SignalChannel interface {
	// AnnounceRole emits role:selected. Called on connect and whenever
	// role or name changes while connected.
	AnnounceRole(role domain.Role, name string) error

	// CreateRoom and JoinRoom wait for the server acknowledgment,
	// bounded by ctx.
	CreateRoom(ctx context.Context, name string) (RoomAck, error)
	JoinRoom(ctx context.Context, roomID domain.RoomID, name string) (RoomAck, error)

	// LeaveRoom and EndRoom are fire-and-forget.
	LeaveRoom(roomID domain.RoomID) error
	EndRoom(roomID domain.RoomID) error

	SendChat(roomID domain.RoomID, msg domain.ChatMessage) error

	// PingEcho performs one acknowledged round trip, bounded by ctx.
	PingEcho(ctx context.Context, roomID domain.RoomID) error
	// ReportPing advertises the locally measured latency to peers.
	ReportPing(roomID domain.RoomID, identity domain.Identity, pingMs int) error

	Close()
}

// ChannelEvents are the inbound signaling callbacks. The adapter
// validates payloads at the boundary and drops malformed events, so
// every callback receives well-formed data. All callbacks run on the
// session dispatcher.
type ChannelEvents struct {
	// OnRoomEnd fires on remote termination of the room.
	OnRoomEnd func()
	// OnChat fires for every inbound chat event with non-empty text.
	// Missing id/sender/timestamp are filled in by the adapter.
	OnChat func(msg domain.ChatMessage)
	// OnPingUpdate carries another participant's advertised latency.
	OnPingUpdate func(identity domain.Identity, pingMs int)
	// OnClosed fires once when the connection is lost or closed.
	OnClosed func(err error)
}
