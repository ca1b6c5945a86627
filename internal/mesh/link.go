// Package mesh maintains one negotiated media channel per remote participant.
package mesh

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
	"github.com/EmilioRXD/Chat-de-voz/internal/protocol"
)

type LinkState int32

const (
	StateIdle LinkState = iota
	StateNegotiating
	StateConnected
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// InitiatorFor deterministically picks which side of a pair initiates: the
// lexicographically smaller connection id. Both sides compute the same
// answer, so simultaneous-initiation glare cannot occur.
func InitiatorFor(a, b domain.ConnectionID) domain.ConnectionID {
	if a < b {
		return a
	}
	return b
}

// maxPendingCandidates bounds the early-candidate buffer. ICE gathering
// produces far fewer in practice; overflow drops the oldest.
const maxPendingCandidates = 64

var ErrLinkClosed = errors.New("peer link closed")

// negotiator is the slice of *webrtc.PeerConnection the link drives.
type negotiator interface {
	CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	RemoteDescription() *webrtc.SessionDescription
	AddICECandidate(webrtc.ICECandidateInit) error
	Close() error
}

// Link owns the negotiated channel to one remote participant. All state moves
// under the mutex; callbacks arriving after Close are ignored.
type Link struct {
	RemoteID domain.ConnectionID
	Role     Role

	mu          sync.Mutex
	displayName string
	state       LinkState
	pc          negotiator
	pending     []webrtc.ICECandidateInit
	send        func(protocol.NegotiationBody) error

	gainBits atomic.Uint64
}

func newLink(remoteID domain.ConnectionID, displayName string, role Role, pc negotiator, send func(protocol.NegotiationBody) error) *Link {
	l := &Link{
		RemoteID:    remoteID,
		Role:        role,
		displayName: displayName,
		state:       StateIdle,
		pc:          pc,
		send:        send,
	}
	l.SetGain(1.0)
	return l
}

func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Link) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.displayName
}

// setName backfills the display name on a link created lazily from an
// overtaking offer, before the participant-joined event carried the name.
func (l *Link) setName(name string) {
	if name == "" {
		return
	}
	l.mu.Lock()
	l.displayName = name
	l.mu.Unlock()
}

// SetGain stores the attenuation applied to this peer's incoming audio.
// Written by the gain loop, read by whatever renders the stream.
func (l *Link) SetGain(g float64) {
	l.gainBits.Store(math.Float64bits(g))
}

func (l *Link) Gain() float64 {
	return math.Float64frombits(l.gainBits.Load())
}

// startOffer generates and sends the local offer. Initiator side only.
func (l *Link) startOffer() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return ErrLinkClosed
	}

	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	l.state = StateNegotiating
	return l.send(protocol.DescriptionBody(protocol.DescriptionOffer, offer.SDP))
}

// HandleDescription applies a remote offer or answer. Only one description
// exchange is in flight per pair; an offer on the initiator side means the
// remote ignored the deterministic role and is dropped.
func (l *Link) HandleDescription(d protocol.Description) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return ErrLinkClosed
	}

	switch d.Kind {
	case protocol.DescriptionOffer:
		if l.Role == RoleInitiator {
			log.Warn().Str("module", "mesh").Str("remote", string(l.RemoteID)).Msg("offer received on initiator side, dropping")
			return nil
		}
		if err := l.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  d.SDP,
		}); err != nil {
			return fmt.Errorf("set remote offer: %w", err)
		}
		l.flushPendingLocked()

		answer, err := l.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := l.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local answer: %w", err)
		}
		l.state = StateNegotiating
		return l.send(protocol.DescriptionBody(protocol.DescriptionAnswer, answer.SDP))

	case protocol.DescriptionAnswer:
		if l.Role == RoleResponder {
			log.Warn().Str("module", "mesh").Str("remote", string(l.RemoteID)).Msg("answer received on responder side, dropping")
			return nil
		}
		if err := l.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer,
			SDP:  d.SDP,
		}); err != nil {
			return fmt.Errorf("set remote answer: %w", err)
		}
		l.flushPendingLocked()
		return nil
	}
	return fmt.Errorf("%w: description kind %q", protocol.ErrBadNegotiation, d.Kind)
}

// HandleCandidate applies a remote ICE candidate, buffering it when it
// arrives ahead of the remote description.
func (l *Link) HandleCandidate(c protocol.Candidate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return ErrLinkClosed
	}

	init := webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
	if l.pc.RemoteDescription() == nil {
		if len(l.pending) >= maxPendingCandidates {
			log.Warn().Str("module", "mesh").Str("remote", string(l.RemoteID)).Msg("pending candidate buffer full, dropping oldest")
			l.pending = l.pending[1:]
		}
		l.pending = append(l.pending, init)
		return nil
	}
	return l.pc.AddICECandidate(init)
}

func (l *Link) flushPendingLocked() {
	for _, c := range l.pending {
		if err := l.pc.AddICECandidate(c); err != nil {
			log.Error().Err(err).Str("module", "mesh").Str("remote", string(l.RemoteID)).Msg("apply buffered candidate")
		}
	}
	l.pending = nil
}

// onConnectionState tracks the underlying channel. Returns true when the link
// entered a terminal failure and should be torn down.
func (l *Link) onConnectionState(s webrtc.PeerConnectionState) (failed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return false
	}
	switch s {
	case webrtc.PeerConnectionStateConnected:
		l.state = StateConnected
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		return true
	}
	return false
}

// Close releases the channel. Idempotent; any callback arriving afterwards
// sees StateClosed and is discarded.
func (l *Link) Close() {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	l.state = StateClosed
	l.pending = nil
	pc := l.pc
	l.mu.Unlock()

	if err := pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "mesh").Str("remote", string(l.RemoteID)).Msg("close peer connection")
	}
}
