package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

func inlineDispatch(fn func()) bool { fn(); return true }

var testUpgrader = websocket.Upgrader{}

// startPeer runs a fake signaling peer; handle receives every inbound
// envelope together with a reply func.
func startPeer(t *testing.T, handle func(env envelope, send func(envelope))) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		send := func(env envelope) {
			data, err := json.Marshal(env)
			if err != nil {
				return
			}
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env envelope
			if json.Unmarshal(data, &env) == nil {
				handle(env, send)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_CreateRoom_AckRoundTrip(t *testing.T) {
	req := require.New(t)
	url := startPeer(t, func(env envelope, send func(envelope)) {
		if env.Type != "room:create" {
			return
		}
		var p roomPayload
		if json.Unmarshal(env.Payload, &p) != nil || p.Name != "Ada" {
			return
		}
		send(envelope{Type: "ack", Ack: env.Ack, Payload: json.RawMessage(`{"ok":true,"roomId":"R1"}`)})
	})

	c, err := Dial(context.Background(), url, core.ChannelEvents{}, inlineDispatch)
	req.NoError(err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ack, err := c.CreateRoom(ctx, "Ada")
	req.NoError(err)
	req.True(ack.OK)
	req.Equal(domain.RoomID("R1"), ack.RoomID)
}

func TestClient_RequestTimesOutWithoutAck(t *testing.T) {
	req := require.New(t)
	url := startPeer(t, func(env envelope, send func(envelope)) {})

	c, err := Dial(context.Background(), url, core.ChannelEvents{}, inlineDispatch)
	req.NoError(err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req.ErrorIs(c.PingEcho(ctx, "R1"), context.DeadlineExceeded)
}

func TestClient_CloseFailsPendingRequest(t *testing.T) {
	req := require.New(t)
	url := startPeer(t, func(env envelope, send func(envelope)) {})

	c, err := Dial(context.Background(), url, core.ChannelEvents{}, inlineDispatch)
	req.NoError(err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.PingEcho(context.Background(), "R1")
	}()
	time.Sleep(20 * time.Millisecond)
	c.Close()

	select {
	case err := <-errCh:
		req.ErrorIs(err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("pending request not released by close")
	}
}

func TestClient_InboundChat_Normalized(t *testing.T) {
	req := require.New(t)
	url := startPeer(t, func(env envelope, send func(envelope)) {
		if env.Type != "role:selected" {
			return
		}
		send(envelope{Type: "chat:message", Payload: json.RawMessage(`{"text":"hi"}`)})
	})

	chats := make(chan domain.ChatMessage, 1)
	events := core.ChannelEvents{OnChat: func(msg domain.ChatMessage) { chats <- msg }}
	c, err := Dial(context.Background(), url, events, inlineDispatch)
	req.NoError(err)
	defer c.Close()

	req.NoError(c.AnnounceRole(domain.RoleTeacher, "Ada"))

	select {
	case msg := <-chats:
		req.Equal("hi", msg.Text)
		req.NotEmpty(msg.ID)
		req.Equal("Guest", msg.Sender)
		req.False(msg.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("chat event not delivered")
	}
}

func TestClient_MalformedInboundDropped(t *testing.T) {
	req := require.New(t)
	url := startPeer(t, func(env envelope, send func(envelope)) {
		if env.Type != "role:selected" {
			return
		}
		// Everything before the sentinel must be dropped silently.
		send(envelope{Type: "chat:message", Payload: json.RawMessage(`{"text":""}`)})
		send(envelope{Type: "ping:update", Payload: json.RawMessage(`{"pingMs":12}`)})
		send(envelope{Type: "ping:update", Payload: json.RawMessage(`{"identity":"p2"}`)})
		send(envelope{Type: "mystery:event", Payload: json.RawMessage(`{}`)})
		send(envelope{Type: "ping:update", Payload: json.RawMessage(`{"identity":"p2","pingMs":41.6}`)})
	})

	chatCount := 0
	pings := make(chan int, 1)
	events := core.ChannelEvents{
		OnChat:       func(msg domain.ChatMessage) { chatCount++ },
		OnPingUpdate: func(identity domain.Identity, pingMs int) { pings <- pingMs },
	}
	c, err := Dial(context.Background(), url, events, inlineDispatch)
	req.NoError(err)
	defer c.Close()

	req.NoError(c.AnnounceRole(domain.RoleStudent, "Pia"))

	select {
	case ms := <-pings:
		req.Equal(42, ms, "fractional ping rounds to the nearest ms")
	case <-time.After(time.Second):
		t.Fatal("valid ping event not delivered")
	}
	req.Zero(chatCount, "empty chat text must be dropped")
}

func TestClient_ConnectionLossRaisesOnClosed(t *testing.T) {
	req := require.New(t)
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	closed := make(chan error, 1)
	events := core.ChannelEvents{OnClosed: func(err error) { closed <- err }}
	c, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), events, inlineDispatch)
	req.NoError(err)
	defer c.Close()

	select {
	case conn := <-serverConns:
		_ = conn.Close()
	case <-time.After(time.Second):
		t.Fatal("server side never saw the connection")
	}

	select {
	case err := <-closed:
		req.Error(err, "remote loss must surface a reason")
	case <-time.After(time.Second):
		t.Fatal("closed event not delivered")
	}
}

func TestClient_SendChat_RateLimited(t *testing.T) {
	req := require.New(t)
	url := startPeer(t, func(env envelope, send func(envelope)) {})

	c, err := Dial(context.Background(), url, core.ChannelEvents{}, inlineDispatch)
	req.NoError(err)
	defer c.Close()

	msg := domain.ChatMessage{ID: "1", Text: "hi", Sender: "Ada", Timestamp: time.Now()}
	for i := 0; i < chatLimit; i++ {
		req.NoError(c.SendChat("R1", msg))
	}
	req.ErrorIs(c.SendChat("R1", msg), ErrRateLimited)
}

func TestSendLimiter_SlidingWindow(t *testing.T) {
	req := require.New(t)
	l := newSendLimiter(3, 10*time.Second)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		req.True(l.Allow(base.Add(time.Duration(i) * time.Second)))
	}
	req.False(l.Allow(base.Add(3 * time.Second)))

	// The first attempt falls out of the window; one slot frees up.
	req.True(l.Allow(base.Add(11 * time.Second)))
	req.False(l.Allow(base.Add(11*time.Second + time.Millisecond)))
}

func TestNormalizeChat(t *testing.T) {
	req := require.New(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	full := normalizeChat(inboundChat{
		ID: "m1", Text: "hi", Sender: "Ada", Timestamp: "2025-06-01T10:30:00Z",
	}, now)
	req.Equal("m1", full.ID)
	req.Equal("Ada", full.Sender)
	req.Equal(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC), full.Timestamp)

	bare := normalizeChat(inboundChat{Text: "hi"}, now)
	req.NotEmpty(bare.ID)
	req.Equal("Guest", bare.Sender)
	req.Equal(now, bare.Timestamp)

	badTS := normalizeChat(inboundChat{Text: "hi", Timestamp: "yesterday"}, now)
	req.Equal(now, badTS.Timestamp, "unparseable timestamp falls back to arrival time")
}

func TestClient_RequestAfterClose(t *testing.T) {
	req := require.New(t)
	url := startPeer(t, func(env envelope, send func(envelope)) {})

	c, err := Dial(context.Background(), url, core.ChannelEvents{}, inlineDispatch)
	req.NoError(err)
	c.Close()

	req.ErrorIs(c.AnnounceRole(domain.RoleTeacher, "Ada"), ErrClosed)
	_, err = c.CreateRoom(context.Background(), "Ada")
	req.True(errors.Is(err, ErrClosed))
}
