package app

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
)

// Frame is an encoded wire message.
type Frame []byte

// Conn abstracts a live signaling transport. Owned by the adapter; the
// adapter must Close() it.
type Conn interface {
	TrySend(Frame) error
	Close()
}

// Hub tracks live connections and implements the relay: opaque forwarding of
// negotiation frames between two connection ids, plus fan-out of registry
// events. It never inspects forwarded payloads.
type Hub struct {
	mu     sync.RWMutex
	conns  map[domain.ConnectionID]Conn
	policy Policy
}

func NewHub(policy Policy) *Hub {
	return &Hub{
		conns:  make(map[domain.ConnectionID]Conn),
		policy: policy,
	}
}

func (h *Hub) Register(id domain.ConnectionID, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = c
	log.Info().Str("module", "app.hub").Str("id", string(id)).Msg("connection registered")
}

func (h *Hub) Unregister(id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
	log.Info().Str("module", "app.hub").Str("id", string(id)).Msg("connection unregistered")
}

func (h *Hub) Live(id domain.ConnectionID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[id]
	return ok
}

// Forward delivers a frame to the target connection. A missing target is a
// stale send under a disconnect race: logged, never surfaced to the sender.
func (h *Hub) Forward(from, to domain.ConnectionID, f Frame) {
	h.mu.RLock()
	c, ok := h.conns[to]
	h.mu.RUnlock()
	if !ok {
		log.Debug().Str("module", "app.hub").Str("from", string(from)).Str("to", string(to)).Msg("forward to unknown target")
		return
	}
	if err := c.TrySend(f); err != nil {
		h.handleSlow(to, err)
	}
}

// Broadcast delivers a frame to every live connection except origin. Pass an
// empty origin to reach everyone.
func (h *Hub) Broadcast(origin domain.ConnectionID, f Frame) {
	h.mu.RLock()
	targets := make(map[domain.ConnectionID]Conn, len(h.conns))
	for id, c := range h.conns {
		if id == origin {
			continue
		}
		targets[id] = c
	}
	h.mu.RUnlock()

	for id, c := range targets {
		if err := c.TrySend(f); err != nil {
			h.handleSlow(id, err)
		}
	}
}

func (h *Hub) handleSlow(id domain.ConnectionID, err error) {
	action := NoAction
	if h.policy != nil {
		action = h.policy.OnBackPressure(id, err)
	}
	switch action {
	case KickConnection:
		log.Warn().Str("module", "app.hub").Str("id", string(id)).Err(err).Msg("kicking slow connection")
		h.mu.Lock()
		c, ok := h.conns[id]
		if ok {
			delete(h.conns, id)
		}
		h.mu.Unlock()
		if ok {
			c.Close()
		}
	case DropFrame, NoAction:
		log.Debug().Str("module", "app.hub").Str("id", string(id)).Err(err).Msg("dropped frame")
	}
}

var ErrBackpressure = errors.New("backpressure")
