package domain

// RoomInfo is the admin-facing view of a running room as reported by
// the signaling server's admin endpoint.
type RoomInfo struct {
	RoomID           RoomID `json:"roomId"`
	Teacher          string `json:"teacher"`
	ParticipantCount int    `json:"participantCount"`
}
