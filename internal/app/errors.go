package app

import "errors"

var (
	// ErrRoomRejected means the create/join acknowledgment reported
	// failure; the session never starts.
	ErrRoomRejected = errors.New("room operation rejected")
	// ErrMediaConfigMissing means no SFU endpoint is configured, so the
	// media session was never created.
	ErrMediaConfigMissing = errors.New("sfu endpoint not configured")
	// ErrTokenFetch wraps token endpoint failures.
	ErrTokenFetch = errors.New("sfu token fetch failed")

	ErrNoSession          = errors.New("no active session")
	ErrRoleMismatch       = errors.New("operation not allowed for role")
	ErrSessionBusy        = errors.New("room operation already in progress")
	ErrDispatcherStopped  = errors.New("session dispatcher stopped")
	ErrChannelNotAttached = errors.New("signaling channel not attached")
)
