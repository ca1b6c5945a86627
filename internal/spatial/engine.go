package spatial

import (
	"math"
	"sync"
	"time"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
)

// SmoothingTimeConstant is the exponential-approach time constant applied when
// moving the audible gain toward its target, to avoid clicks on jumps.
const SmoothingTimeConstant = 100 * time.Millisecond

type peerState struct {
	pos     domain.Vec3
	custom  float64
	muted   bool
	current float64
	target  float64
}

// Engine holds the per-peer gain state for one client. Every position or
// override change recomputes targets; a periodic Step advances the audible
// gains toward them.
type Engine struct {
	mu          sync.Mutex
	params      Params
	selfPos     domain.Vec3
	deafened    bool
	authorityOK bool
	peers       map[domain.ConnectionID]*peerState
}

func NewEngine(params Params) *Engine {
	return &Engine{
		params:      params,
		authorityOK: true,
		peers:       make(map[domain.ConnectionID]*peerState),
	}
}

func (e *Engine) AddPeer(id domain.ConnectionID, pos domain.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.peers[id]; ok {
		return
	}
	p := &peerState{pos: pos, custom: 1.0}
	e.peers[id] = p
	e.recomputeLocked(p)
}

func (e *Engine) RemovePeer(id domain.ConnectionID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.peers, id)
}

func (e *Engine) SetSelfPosition(pos domain.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selfPos = pos
	e.recomputeAllLocked()
}

func (e *Engine) SelfPosition() domain.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selfPos
}

func (e *Engine) SetPeerPosition(id domain.ConnectionID, pos domain.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.peers[id]
	if !ok {
		return
	}
	p.pos = pos
	e.recomputeLocked(p)
}

func (e *Engine) SetPeerVolume(id domain.ConnectionID, factor float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.peers[id]
	if !ok {
		return
	}
	p.custom = factor
	e.recomputeLocked(p)
}

func (e *Engine) SetPeerMuted(id domain.ConnectionID, muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.peers[id]
	if !ok {
		return
	}
	p.muted = muted
	e.recomputeLocked(p)
}

func (e *Engine) SetDeafened(deafened bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deafened = deafened
	e.recomputeAllLocked()
}

// SetAuthorityPresent marks whether the authoritative context is verified.
// While it is not, every gain is forced to zero regardless of distance.
func (e *Engine) SetAuthorityPresent(ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.authorityOK = ok
	e.recomputeAllLocked()
}

func (e *Engine) SetParams(p Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = p
	e.recomputeAllLocked()
}

func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

func (e *Engine) recomputeAllLocked() {
	for _, p := range e.peers {
		e.recomputeLocked(p)
	}
}

func (e *Engine) recomputeLocked(p *peerState) {
	if e.deafened || p.muted || !e.authorityOK {
		p.target = 0
		return
	}
	raw := Gain(e.selfPos.DistanceTo(p.pos), e.params)
	p.target = Clamp01(raw * p.custom)
}

// TargetFor returns the computed (unsmoothed) gain for a peer.
func (e *Engine) TargetFor(id domain.ConnectionID) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.peers[id]
	if !ok {
		return 0, false
	}
	return p.target, true
}

// Step advances every audible gain toward its target by dt of exponential
// approach and returns the new values. Call it from a periodic timer
// independent of any network I/O.
func (e *Engine) Step(dt time.Duration) map[domain.ConnectionID]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	alpha := 1 - math.Exp(-dt.Seconds()/SmoothingTimeConstant.Seconds())
	out := make(map[domain.ConnectionID]float64, len(e.peers))
	for id, p := range e.peers {
		p.current += (p.target - p.current) * alpha
		out[id] = p.current
	}
	return out
}
