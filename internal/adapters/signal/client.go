// Package signal implements the classroom side of the signaling
// channel: a websocket client with ack-correlated requests and typed
// inbound events.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
)

var (
	ErrBackpressure = errors.New("send buffer full")
	ErrClosed       = errors.New("signaling connection closed")
	ErrRateLimited  = errors.New("chat rate limit exceeded")
)

const (
	sendBuffer    = 32
	writeDeadline = 5 * time.Second

	chatLimit    = 10
	chatInterval = 10 * time.Second
)

// envelope is the wire frame. Requests carry an ack id; the server
// answers with type "ack" and the same id.
type envelope struct {
	Type    string          `json:"type"`
	Ack     uint64          `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is the typed wrapper over the signaling connection. One
// connect-use-close lifecycle per session; no reconnection on loss.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once

	dispatch core.Dispatch
	events   core.ChannelEvents
	chats    *sendLimiter

	mu      sync.Mutex
	nextAck uint64
	pending map[uint64]chan envelope

	closed chan struct{}
}

// Dial connects the channel and starts the pumps. Inbound events are
// validated here and handed to events via dispatch.
func Dial(ctx context.Context, url string, events core.ChannelEvents, dispatch core.Dispatch) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		dispatch: dispatch,
		events:   events,
		chats:    newSendLimiter(chatLimit, chatInterval),
		pending:  make(map[uint64]chan envelope),
		closed:   make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	log.Info().Str("module", "adapters.signal").Str("url", url).Msg("signaling channel connected")
	return c, nil
}

// Close releases the connection and all subscriptions. Idempotent.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
		c.failPending()
		log.Info().Str("module", "adapters.signal").Msg("signaling channel closed")
	})
}

func (c *Client) trySend(data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.closed:
			log.Debug().Str("module", "adapters.signal").Msg("writePump closed")
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Client) readPump() {
	var readErr error
	defer func() {
		c.Close()
		err := readErr
		if !c.dispatch(func() {
			if c.events.OnClosed != nil {
				c.events.OnClosed(err)
			}
		}) {
			log.Debug().Str("module", "adapters.signal").Msg("closed event dropped, dispatcher stopped")
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				// Voluntary close, not a connection loss.
			default:
				readErr = err
				log.Warn().Err(err).Str("module", "adapters.signal").Msg("readPump read error")
			}
			return
		}
		c.handleInbound(data)
	}
}

func (c *Client) handleInbound(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Msg("bad json, dropped")
		return
	}

	switch env.Type {
	case "ack":
		c.deliverAck(env)
	case "room:end":
		c.dispatchEvent(func() {
			if c.events.OnRoomEnd != nil {
				c.events.OnRoomEnd()
			}
		})
	case "chat:message":
		c.handleChat(env.Payload)
	case "ping:update":
		c.handlePingUpdate(env.Payload)
	default:
		log.Debug().Str("module", "adapters.signal").Str("type", env.Type).Msg("unknown event, dropped")
	}
}

func (c *Client) dispatchEvent(fn func()) {
	if !c.dispatch(fn) {
		log.Debug().Str("module", "adapters.signal").Msg("event dropped, dispatcher stopped")
	}
}

// request sends an envelope with an ack id and waits, bounded by ctx,
// for the matching ack.
func (c *Client) request(ctx context.Context, msgType string, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.nextAck++
	id := c.nextAck
	ch := make(chan envelope, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(envelope{Type: msgType, Ack: id, Payload: raw})
	if err != nil {
		return nil, err
	}
	if err := c.trySend(data); err != nil {
		return nil, err
	}

	select {
	case env, ok := <-ch:
		if !ok {
			// failPending closed the channel underneath us.
			return nil, ErrClosed
		}
		return env.Payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

// emit sends a fire-and-forget envelope.
func (c *Client) emit(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{Type: msgType, Payload: raw})
	if err != nil {
		return err
	}
	return c.trySend(data)
}

func (c *Client) deliverAck(env envelope) {
	c.mu.Lock()
	ch, ok := c.pending[env.Ack]
	c.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "adapters.signal").Uint64("ack", env.Ack).Msg("stray ack, dropped")
		return
	}
	select {
	case ch <- env:
	default:
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// sendLimiter is a sliding-window limit on outbound chat messages.
type sendLimiter struct {
	mu       sync.Mutex
	attempts []time.Time
	limit    int
	interval time.Duration
}

func newSendLimiter(limit int, interval time.Duration) *sendLimiter {
	return &sendLimiter{limit: limit, interval: interval}
}

func (l *sendLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := now.Add(-l.interval)
	fresh := make([]time.Time, 0, len(l.attempts))
	for _, t := range l.attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= l.limit {
		l.attempts = fresh
		return false
	}
	l.attempts = append(fresh, now)
	return true
}

var _ core.SignalChannel = (*Client)(nil)
