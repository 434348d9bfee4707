package domain

import "time"

// ChatMessage is an immutable chat record. Insertion order in the log
// equals arrival order.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}
