// Package sfu implements the media session client: one
// connect-use-disconnect lifecycle against the SFU, with a websocket
// control link for membership and publication notifications and a
// pion PeerConnection for the media itself.
package sfu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

var (
	ErrNotConnected     = errors.New("media session not connected")
	ErrAlreadyConnected = errors.New("media session already connected")
	ErrBackpressure     = errors.New("control send buffer full")
	ErrClosed           = errors.New("media session closed")
)

const (
	sendBuffer     = 32
	writeDeadline  = 5 * time.Second
	connectTimeout = 10 * time.Second
)

// Session implements core.MediaSession. A fresh Connect after
// Disconnect starts a new lifecycle on the same instance.
type Session struct {
	dispatch core.Dispatch
	events   core.MediaEvents

	mu        sync.Mutex
	connected bool
	conn      *websocket.Conn
	peer      *peerConnection
	send      chan []byte
	closed    chan struct{}
	closeOnce *sync.Once
	welcome   chan welcomePayload

	local     core.ParticipantInfo
	remotes   map[domain.Identity]core.ParticipantInfo
	micSender *webrtc.RTPSender
	camSender *webrtc.RTPSender
}

func NewSession(events core.MediaEvents, dispatch core.Dispatch) *Session {
	return &Session{
		dispatch: dispatch,
		events:   events,
		remotes:  make(map[domain.Identity]core.ParticipantInfo),
	}
}

// Connect dials the control link, joins with the bearer token and
// waits for the SFU's welcome. Remote participants already in the room
// are replayed as connect events, closing the early-joiner race.
func (s *Session) Connect(ctx context.Context, endpoint, token string) error {
	if token == "" {
		return errors.New("empty sfu token")
	}
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint, header)
	if err != nil {
		return fmt.Errorf("sfu dial: %w", err)
	}

	peer, err := newPeerConnection(defaultWebRTCConfig())
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("peer connection: %w", err)
	}

	closed := make(chan struct{})
	welcome := make(chan welcomePayload, 1)

	s.mu.Lock()
	s.conn = conn
	s.peer = peer
	s.send = make(chan []byte, sendBuffer)
	s.closed = closed
	s.closeOnce = new(sync.Once)
	s.welcome = welcome
	s.remotes = make(map[domain.Identity]core.ParticipantInfo)
	s.local = core.ParticipantInfo{}
	s.micSender, s.camSender = nil, nil
	s.mu.Unlock()

	peer.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		p := candidatePayload{Candidate: ci.Candidate}
		if ci.SDPMid != nil {
			p.SDPMid = *ci.SDPMid
		}
		p.SDPMLineIndex = ci.SDPMLineIndex
		if err := s.sendMessage("candidate", p); err != nil {
			log.Debug().Err(err).Str("module", "adapters.sfu").Msg("candidate send failed")
		}
	})
	peer.OnClosed(func() { s.Disconnect() })
	peer.Start(context.Background())

	go s.writePump(conn, s.send, closed)
	go s.readLoop(conn, closed)

	if err := s.sendMessage("join", joinPayload{Token: token}); err != nil {
		s.Disconnect()
		return fmt.Errorf("sfu join: %w", err)
	}

	select {
	case w := <-welcome:
		s.acceptWelcome(w)
	case <-dialCtx.Done():
		s.Disconnect()
		return fmt.Errorf("sfu welcome: %w", dialCtx.Err())
	case <-closed:
		return ErrClosed
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	log.Info().Str("module", "adapters.sfu").Str("endpoint", endpoint).Msg("media session connected")
	return nil
}

func (s *Session) acceptWelcome(w welcomePayload) {
	if self, ok := resolve(w.Self); ok {
		s.mu.Lock()
		s.local = self
		s.mu.Unlock()
	}
	for _, wp := range w.Participants {
		info, ok := resolve(wp)
		if !ok {
			continue
		}
		s.mu.Lock()
		s.remotes[info.ID] = info
		s.mu.Unlock()
		s.emit(func() {
			if s.events.OnParticipantConnected != nil {
				s.events.OnParticipantConnected(info)
			}
		})
	}
}

// EnableLocalMedia publishes microphone and camera tracks. Any failure
// here means local capture is blocked; the session itself stays up.
func (s *Session) EnableLocalMedia(ctx context.Context) error {
	s.mu.Lock()
	peer := s.peer
	connected := s.connected
	s.mu.Unlock()
	if !connected || peer == nil {
		return ErrNotConnected
	}

	mic, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "classroom-mic")
	if err != nil {
		return fmt.Errorf("microphone capture: %w", err)
	}
	cam, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "classroom-cam")
	if err != nil {
		return fmt.Errorf("camera capture: %w", err)
	}

	micSender, err := peer.AddLocalTrack(mic)
	if err != nil {
		return fmt.Errorf("publish microphone: %w", err)
	}
	camSender, err := peer.AddLocalTrack(cam)
	if err != nil {
		_ = micSender.Stop()
		return fmt.Errorf("publish camera: %w", err)
	}

	s.mu.Lock()
	s.micSender = micSender
	s.camSender = camSender
	s.mu.Unlock()

	for _, pub := range []struct {
		id   string
		kind domain.TrackKind
		stop func() error
	}{
		{mic.ID(), domain.TrackAudio, micSender.Stop},
		{cam.ID(), domain.TrackVideo, camSender.Stop},
	} {
		if err := s.sendMessage("publish", wireTrack{ID: pub.id, Kind: string(pub.kind)}); err != nil {
			log.Debug().Err(err).Str("module", "adapters.sfu").Msg("publish notify failed")
		}
		stop := pub.stop
		track := domain.NewTrack(pub.id, pub.kind, func() { _ = stop() })
		s.emit(func() {
			if s.events.OnLocalTrackPublished != nil {
				s.events.OnLocalTrackPublished(track, false)
			}
		})
	}
	return nil
}

func (s *Session) SetMicrophoneEnabled(enabled bool) error {
	return s.setPublicationMuted(domain.TrackAudio, !enabled)
}

func (s *Session) SetCameraEnabled(enabled bool) error {
	return s.setPublicationMuted(domain.TrackVideo, !enabled)
}

func (s *Session) setPublicationMuted(kind domain.TrackKind, muted bool) error {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	return s.sendMessage("mute", mutePayload{Kind: string(kind), Muted: muted})
}

func (s *Session) LocalParticipant() core.ParticipantInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

func (s *Session) RemoteParticipants() []core.ParticipantInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ParticipantInfo, 0, len(s.remotes))
	for _, info := range s.remotes {
		out = append(out, info)
	}
	return out
}

// Disconnect closes the control link and the peer connection.
// Idempotent; safe before Connect.
func (s *Session) Disconnect() {
	s.mu.Lock()
	once := s.closeOnce
	conn := s.conn
	peer := s.peer
	closed := s.closed
	s.connected = false
	s.remotes = make(map[domain.Identity]core.ParticipantInfo)
	s.mu.Unlock()

	if once == nil {
		return
	}
	once.Do(func() {
		close(closed)
		if conn != nil {
			_ = conn.Close()
		}
		if peer != nil {
			peer.Close()
		}
		log.Info().Str("module", "adapters.sfu").Msg("media session disconnected")
	})
}

func (s *Session) sendMessage(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(message{Type: msgType, Payload: raw})
	if err != nil {
		return err
	}

	s.mu.Lock()
	send, closed := s.send, s.closed
	s.mu.Unlock()
	if send == nil {
		return ErrNotConnected
	}
	select {
	case <-closed:
		return ErrClosed
	default:
	}
	select {
	case send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (s *Session) writePump(conn *websocket.Conn, send chan []byte, closed chan struct{}) {
	for {
		select {
		case <-closed:
			return
		case data := <-send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "adapters.sfu").Msg("writePump set deadline")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.sfu").Msg("writePump write error")
				return
			}
		}
	}
}

func (s *Session) readLoop(conn *websocket.Conn, closed chan struct{}) {
	defer s.Disconnect()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-closed:
			default:
				log.Warn().Err(err).Str("module", "adapters.sfu").Msg("control link read error")
			}
			return
		}
		s.handleMessage(data)
	}
}

func (s *Session) emit(fn func()) {
	if !s.dispatch(fn) {
		log.Debug().Str("module", "adapters.sfu").Msg("media event dropped, dispatcher stopped")
	}
}

var _ core.MediaSession = (*Session)(nil)
