// Package admin polls the signaling server's room listing. Display is
// someone else's problem; this only keeps the latest snapshot fresh.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/domain"
)

const requestTimeout = 5 * time.Second

type Poller struct {
	base    string
	period  time.Duration
	http    *http.Client
	onRooms func(rooms []domain.RoomInfo)

	mu   sync.RWMutex
	last []domain.RoomInfo
}

// NewPoller creates a poller against base. onRooms may be nil.
func NewPoller(base string, period time.Duration, onRooms func(rooms []domain.RoomInfo)) *Poller {
	return &Poller{
		base:    base,
		period:  period,
		http:    &http.Client{Timeout: requestTimeout},
		onRooms: onRooms,
	}
}

// Run fetches immediately and then on every period tick until ctx is
// cancelled. Fetch failures yield an empty list, never an error.
func (p *Poller) Run(ctx context.Context) {
	p.refresh(ctx)
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "adapters.admin").Msg("poller stopped")
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

// LastRooms returns the most recent snapshot.
func (p *Poller) LastRooms() []domain.RoomInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.RoomInfo, len(p.last))
	copy(out, p.last)
	return out
}

func (p *Poller) refresh(ctx context.Context) {
	rooms := p.fetch(ctx)
	p.mu.Lock()
	p.last = rooms
	p.mu.Unlock()
	if p.onRooms != nil {
		p.onRooms(rooms)
	}
}

func (p *Poller) fetch(ctx context.Context) []domain.RoomInfo {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/api/admin/rooms", nil)
	if err != nil {
		return []domain.RoomInfo{}
	}
	resp, err := p.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("module", "adapters.admin").Msg("rooms fetch failed")
		return []domain.RoomInfo{}
	}
	defer resp.Body.Close()

	var payload struct {
		Rooms []domain.RoomInfo `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Debug().Err(err).Str("module", "adapters.admin").Msg("bad rooms payload")
		return []domain.RoomInfo{}
	}
	if payload.Rooms == nil {
		return []domain.RoomInfo{}
	}
	return payload.Rooms
}
