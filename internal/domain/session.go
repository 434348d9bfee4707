// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"fmt"
	"time"
)

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrUnknownRole        = errors.New("unknown role")
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTeacher, RoleStudent, RoleAdmin:
		return Role(s), nil
	}
	return "", ErrUnknownRole
}

type RoomID string

// SessionStatus is the lifecycle state of a classroom visit.
type SessionStatus string

const (
	StatusIdle         SessionStatus = "idle"
	StatusConnecting   SessionStatus = "connecting"
	StatusLive         SessionStatus = "live"
	StatusMediaBlocked SessionStatus = "media-blocked"
	StatusError        SessionStatus = "error"
	StatusEnded        SessionStatus = "ended"
)

// Identity is the process-unique id of a participant.
type Identity string

// NewIdentity derives the local identity assigned at bootstrap.
// Format is <role>-<unix-ms>, unique for the process lifetime.
func NewIdentity(role Role, now time.Time) Identity {
	return Identity(fmt.Sprintf("%s-%d", role, now.UnixMilli()))
}

func ValidateDisplayName(name string) error {
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	return nil
}
