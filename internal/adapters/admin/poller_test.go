package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Classroom/internal/domain"
)

func TestPoller_RefreshesImmediatelyAndOnTick(t *testing.T) {
	req := require.New(t)
	var lastPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastPath.Store(r.URL.Path)
		_, _ = w.Write([]byte(`{"rooms":[{"roomId":"R1","teacher":"Ada","participantCount":3}]}`))
	}))
	t.Cleanup(srv.Close)

	updates := make(chan []domain.RoomInfo, 16)
	p := NewPoller(srv.URL, 10*time.Millisecond, func(rooms []domain.RoomInfo) { updates <- rooms })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case rooms := <-updates:
		req.Len(rooms, 1)
		req.Equal(domain.RoomID("R1"), rooms[0].RoomID)
		req.Equal("Ada", rooms[0].Teacher)
		req.Equal(3, rooms[0].ParticipantCount)
	case <-time.After(time.Second):
		t.Fatal("no immediate refresh")
	}

	// At least one more refresh from the ticker.
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("no periodic refresh")
	}

	last := p.LastRooms()
	req.Len(last, 1)

	// Callers may mutate their copy freely.
	last[0].Teacher = "mutated"
	req.Equal("Ada", p.LastRooms()[0].Teacher)
	req.Equal("/api/admin/rooms", lastPath.Load())
}

func TestPoller_FetchFailureYieldsEmptyList(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	t.Cleanup(srv.Close)

	updates := make(chan []domain.RoomInfo, 1)
	p := NewPoller(srv.URL, time.Hour, func(rooms []domain.RoomInfo) { updates <- rooms })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case rooms := <-updates:
		req.NotNil(rooms)
		req.Empty(rooms)
	case <-time.After(time.Second):
		t.Fatal("no refresh")
	}
}

func TestPoller_UnreachableServer(t *testing.T) {
	p := NewPoller("http://127.0.0.1:1", time.Hour, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go p.Run(ctx)
	<-ctx.Done()
	require.NotNil(t, p.LastRooms())
	require.Empty(t, p.LastRooms())
}
