// Package client runs one participant: signaling connection, peer mesh,
// spatial audio engine, voice detection and authority reconciliation.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/randutil"
	"github.com/rs/zerolog/log"

	"github.com/EmilioRXD/Chat-de-voz/internal/authority"
	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
	"github.com/EmilioRXD/Chat-de-voz/internal/media"
	"github.com/EmilioRXD/Chat-de-voz/internal/mesh"
	"github.com/EmilioRXD/Chat-de-voz/internal/protocol"
	"github.com/EmilioRXD/Chat-de-voz/internal/spatial"
	"github.com/EmilioRXD/Chat-de-voz/internal/vad"
)

// gainStepInterval is the cadence of the smoothed-gain loop. Independent of
// any network I/O.
const gainStepInterval = 50 * time.Millisecond

type Options struct {
	ServerURL   string
	DisplayName string
	Position    domain.Vec3
	Spatial     spatial.Params
	Sensitivity vad.Sensitivity
	SampleInt   time.Duration
	SilenceHold time.Duration

	// Source is the capture device. Required; a nil source is treated as
	// denied media access, which is fatal to session start.
	Source media.Source
	// Levels feeds the voice detector. Optional; defaults to Source when it
	// also measures levels, otherwise the detector idles at silence.
	Levels vad.LevelSource
}

type Session struct {
	opts Options

	conn *websocket.Conn
	send chan []byte

	engine   *spatial.Engine
	mesh     *mesh.Manager
	rec      *authority.Reconciler
	pump     *media.Pump
	detector *vad.Detector
	sampler  *vad.Sampler

	mu         sync.Mutex
	selfID     domain.ConnectionID
	roster     map[domain.ConnectionID]string
	pendingNeg [][]byte
	muted      bool

	// OnPeerVoice fires on relayed voice-state changes. Optional.
	OnPeerVoice func(id domain.ConnectionID, name string, talking bool, levelDb float64)
}

func NewSession(opts Options) (*Session, error) {
	if opts.Source == nil {
		return nil, media.ErrMediaAccessDenied
	}
	if err := domain.ValidateDisplayName(opts.DisplayName); err != nil {
		return nil, err
	}
	if opts.Spatial == (spatial.Params{}) {
		opts.Spatial = spatial.DefaultParams()
	}

	track, err := media.NewMicTrack()
	if err != nil {
		return nil, fmt.Errorf("create mic track: %w", err)
	}

	s := &Session{
		opts:     opts,
		send:     make(chan []byte, 32),
		engine:   spatial.NewEngine(opts.Spatial),
		detector: vad.NewDetector(opts.Sensitivity, opts.SilenceHold),
		roster:   make(map[domain.ConnectionID]string),
	}
	s.engine.SetSelfPosition(opts.Position)
	s.pump = media.NewPump(track, opts.Source, randutil.NewMathRandomGenerator().Uint32())
	s.rec = authority.NewReconciler(opts.DisplayName, s.engine, s)
	s.rec.OnSelfMute = s.setMuted

	levels := opts.Levels
	if levels == nil {
		if src, ok := opts.Source.(vad.LevelSource); ok {
			levels = src
		} else {
			levels = silentLevels{}
		}
	}
	s.sampler = vad.NewSampler(levels, s.detector, opts.SampleInt)
	s.sampler.OnLevel = s.onVoiceLevel

	// The mesh needs the relay-assigned id from the snapshot; negotiation
	// frames arriving before it are buffered in dispatch.
	return s, nil
}

type silentLevels struct{}

func (silentLevels) Samples() []float64 { return nil }

// Run connects, joins, and blocks until ctx is done or the connection drops.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.opts.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial signaling server: %w", err)
	}
	s.conn = conn
	defer conn.Close()

	// ReadMessage has no context variant; closing the socket is the only way
	// to unblock the read loop on cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := s.sendJSON(protocol.Join{
		Type:        protocol.MsgJoin,
		DisplayName: s.opts.DisplayName,
		Position:    s.opts.Position,
	}); err != nil {
		return err
	}

	go s.writePump(ctx)
	go s.gainLoop(ctx)
	go s.sampler.Run(ctx)
	go s.pump.Run(ctx)

	defer func() {
		if s.mesh != nil {
			s.mesh.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("signaling read: %w", err)
		}
		s.dispatch(data)
	}
}

// Move applies local movement input. Ignored once an authority is active:
// authoritative position always wins.
func (s *Session) Move(delta domain.Vec3) {
	if s.rec.Active() {
		log.Debug().Str("module", "client").Msg("local movement ignored, authority active")
		return
	}
	pos := s.engine.SelfPosition().Add(delta)
	s.engine.SetSelfPosition(pos)
	_ = s.sendJSON(protocol.PositionUpdate{Type: protocol.MsgPositionUpdate, Position: pos})
}

// SwapSource replaces the capture device without touching any peer channel.
func (s *Session) SwapSource(src media.Source) {
	s.pump.SwapSource(src)
}

func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// SendNegotiation implements mesh.SignalSender.
func (s *Session) SendNegotiation(to domain.ConnectionID, body protocol.NegotiationBody) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return s.sendJSON(protocol.NegotiationIn{
		Type:    protocol.MsgNegotiation,
		To:      to,
		Message: raw,
	})
}

// IDsByName implements authority.Roster.
func (s *Session) IDsByName(name string) []domain.ConnectionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ConnectionID
	for id, n := range s.roster {
		if n == name {
			out = append(out, id)
		}
	}
	return out
}

func (s *Session) setMuted(muted bool) {
	s.mu.Lock()
	changed := s.muted != muted
	s.muted = muted
	s.mu.Unlock()
	if changed {
		log.Info().Str("module", "client").Bool("muted", muted).Msg("authority mute")
	}
}

func (s *Session) onVoiceLevel(levelDb float64, talking bool) {
	_ = s.sendJSON(protocol.VoiceActivity{
		Type:        protocol.MsgVoiceActivity,
		DisplayName: s.opts.DisplayName,
		Talking:     talking,
		LevelDb:     levelDb,
	})
}

func (s *Session) gainLoop(ctx context.Context) {
	ticker := time.NewTicker(gainStepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gains := s.engine.Step(gainStepInterval)
			s.mu.Lock()
			m := s.mesh
			s.mu.Unlock()
			if m != nil {
				m.ApplyGains(gains)
			}
		}
	}
}

func (s *Session) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "client").Msg("set write deadline")
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "client").Msg("signaling write")
				return
			}
		}
	}
}

func (s *Session) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case s.send <- b:
		return nil
	default:
		return errors.New("signaling send buffer full")
	}
}
