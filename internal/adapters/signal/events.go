package signal

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/domain"
)

// Inbound payloads come from a stream this layer does not control, so
// every field is validated here and malformed events are dropped
// without raising.

type inboundChat struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

type inboundPing struct {
	Identity string   `json:"identity"`
	PingMs   *float64 `json:"pingMs"`
}

func (c *Client) handleChat(raw json.RawMessage) {
	var p inboundChat
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Msg("bad chat payload, dropped")
		return
	}
	if p.Text == "" {
		return
	}
	msg := normalizeChat(p, time.Now().UTC())
	c.dispatchEvent(func() {
		if c.events.OnChat != nil {
			c.events.OnChat(msg)
		}
	})
}

// normalizeChat fills in the fields the sender may omit: generated id,
// Guest sender, arrival timestamp.
func normalizeChat(p inboundChat, now time.Time) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:        p.ID,
		Text:      p.Text,
		Sender:    p.Sender,
		Timestamp: now,
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Sender == "" {
		msg.Sender = "Guest"
	}
	if p.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
			msg.Timestamp = ts
		}
	}
	return msg
}

func (c *Client) handlePingUpdate(raw json.RawMessage) {
	var p inboundPing
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Msg("bad ping payload, dropped")
		return
	}
	if p.Identity == "" || p.PingMs == nil {
		return
	}
	identity := domain.Identity(p.Identity)
	pingMs := int(math.Round(*p.PingMs))
	c.dispatchEvent(func() {
		if c.events.OnPingUpdate != nil {
			c.events.OnPingUpdate(identity, pingMs)
		}
	})
}
