package mesh

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
	"github.com/EmilioRXD/Chat-de-voz/internal/protocol"
)

// SignalSender carries a negotiation body to a remote participant through the
// relay.
type SignalSender interface {
	SendNegotiation(to domain.ConnectionID, body protocol.NegotiationBody) error
}

// DefaultICEServers matches the STUN set the web client ships with.
func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{URLs: []string{"stun:stun1.l.google.com:19302"}},
	}
}

// Manager keeps one Link per remote participant, creating them from registry
// events and destroying them on departure.
type Manager struct {
	selfID     domain.ConnectionID
	sender     SignalSender
	webrtcCfg  webrtc.Configuration
	localTrack webrtc.TrackLocal

	// OnRemoteTrack fires when a peer's audio arrives. Optional.
	OnRemoteTrack func(id domain.ConnectionID, track *webrtc.TrackRemote, recv *webrtc.RTPReceiver)
	// OnLinkClosed fires after a link is torn down, for any cause. Optional.
	OnLinkClosed func(id domain.ConnectionID)

	mu    sync.Mutex
	links map[domain.ConnectionID]*Link
	// Candidates that arrived before any link existed for their sender,
	// applied once the link is created.
	early map[domain.ConnectionID][]protocol.Candidate

	closed bool
}

func NewManager(selfID domain.ConnectionID, sender SignalSender, localTrack webrtc.TrackLocal) *Manager {
	return &Manager{
		selfID:     selfID,
		sender:     sender,
		webrtcCfg:  webrtc.Configuration{ICEServers: DefaultICEServers()},
		localTrack: localTrack,
		links:      make(map[domain.ConnectionID]*Link),
		early:      make(map[domain.ConnectionID][]protocol.Candidate),
	}
}

// AddPeer creates the link for a newly discovered participant. The initiator
// side starts the offer immediately; the responder waits for it.
func (m *Manager) AddPeer(id domain.ConnectionID, displayName string) error {
	role := RoleResponder
	if InitiatorFor(m.selfID, id) == m.selfID {
		role = RoleInitiator
	}

	link, created, err := m.ensureLink(id, displayName, role)
	if err != nil {
		return err
	}
	if !created {
		// The link may predate the participant-joined event (lazy creation
		// from an overtaking offer); it was built without a name.
		link.setName(displayName)
		return nil
	}

	log.Info().Str("module", "mesh").Str("remote", string(id)).Str("name", displayName).Str("role", roleName(role)).Msg("peer link created")

	if role == RoleInitiator {
		if err := link.startOffer(); err != nil {
			m.teardown(id, link)
			return fmt.Errorf("negotiation failure with %s: %w", id, err)
		}
	}
	return nil
}

// RemovePeer releases the link and its channel synchronously.
func (m *Manager) RemovePeer(id domain.ConnectionID) {
	m.mu.Lock()
	link, ok := m.links[id]
	if ok {
		delete(m.links, id)
	}
	delete(m.early, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	link.Close()
	if m.OnLinkClosed != nil {
		m.OnLinkClosed(id)
	}
	log.Info().Str("module", "mesh").Str("remote", string(id)).Msg("peer link removed")
}

// HandleNegotiation routes a relayed negotiation frame to the right link. A
// description offer for an unknown peer creates the link lazily: the offer can
// overtake the participant-joined event, since cross-id ordering is not
// guaranteed.
func (m *Manager) HandleNegotiation(from domain.ConnectionID, raw json.RawMessage) error {
	body, err := protocol.DecodeNegotiationBody(raw)
	if err != nil {
		return err
	}

	m.mu.Lock()
	link, ok := m.links[from]
	m.mu.Unlock()

	if !ok {
		switch {
		case body.Kind == protocol.NegotiationDescription && body.Description.Kind == protocol.DescriptionOffer:
			link, _, err = m.ensureLink(from, "", RoleResponder)
			if err != nil {
				return err
			}
		case body.Kind == protocol.NegotiationCandidate:
			// Candidates normally follow their offer on the same socket, but
			// nothing orders frames across ids. Hold them for the link.
			m.bufferEarlyCandidate(from, *body.Candidate)
			return nil
		default:
			log.Debug().Str("module", "mesh").Str("from", string(from)).Str("kind", body.Kind).Msg("negotiation for unknown peer, dropping")
			return nil
		}
	}

	switch body.Kind {
	case protocol.NegotiationDescription:
		err = link.HandleDescription(*body.Description)
	case protocol.NegotiationCandidate:
		err = link.HandleCandidate(*body.Candidate)
	}
	if err != nil {
		// Media-negotiation errors are isolated per peer: tear this link
		// down, leave the session running.
		log.Error().Err(err).Str("module", "mesh").Str("remote", string(from)).Msg("negotiation failure")
		m.teardown(from, link)
		return err
	}
	return nil
}

func (m *Manager) Link(id domain.ConnectionID) (*Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	return l, ok
}

// ApplyGains pushes smoothed gains onto the links that still exist.
func (m *Manager) ApplyGains(gains map[domain.ConnectionID]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, g := range gains {
		if l, ok := m.links[id]; ok {
			l.SetGain(g)
		}
	}
}

func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	links := make([]*Link, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	m.links = make(map[domain.ConnectionID]*Link)
	m.early = make(map[domain.ConnectionID][]protocol.Candidate)
	m.mu.Unlock()

	for _, l := range links {
		l.Close()
	}
}

func (m *Manager) ensureLink(id domain.ConnectionID, displayName string, role Role) (*Link, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrLinkClosed
	}
	if l, ok := m.links[id]; ok {
		return l, false, nil
	}

	pc, err := webrtc.NewPeerConnection(m.webrtcCfg)
	if err != nil {
		return nil, false, fmt.Errorf("new peer connection: %w", err)
	}
	if m.localTrack != nil {
		if _, err := pc.AddTrack(m.localTrack); err != nil {
			_ = pc.Close()
			return nil, false, fmt.Errorf("add local track: %w", err)
		}
	}

	link := newLink(id, displayName, role, pc, func(body protocol.NegotiationBody) error {
		return m.sender.SendNegotiation(id, body)
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		err := m.sender.SendNegotiation(id, protocol.CandidateBody(protocol.Candidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		}))
		if err != nil {
			log.Error().Err(err).Str("module", "mesh").Str("remote", string(id)).Msg("send candidate")
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "mesh").Str("remote", string(id)).Str("state", s.String()).Msg("channel state")
		if link.onConnectionState(s) {
			m.teardown(id, link)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, recv *webrtc.RTPReceiver) {
		if m.OnRemoteTrack != nil {
			m.OnRemoteTrack(id, track, recv)
		}
	})

	m.links[id] = link

	for _, c := range m.early[id] {
		if err := link.HandleCandidate(c); err != nil {
			log.Error().Err(err).Str("module", "mesh").Str("remote", string(id)).Msg("apply early candidate")
		}
	}
	delete(m.early, id)

	return link, true, nil
}

func (m *Manager) bufferEarlyCandidate(from domain.ConnectionID, c protocol.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	q := m.early[from]
	if len(q) >= maxPendingCandidates {
		log.Warn().Str("module", "mesh").Str("from", string(from)).Msg("early candidate buffer full, dropping oldest")
		q = q[1:]
	}
	m.early[from] = append(q, c)
	log.Debug().Str("module", "mesh").Str("from", string(from)).Msg("candidate ahead of link, buffered")
}

func (m *Manager) teardown(id domain.ConnectionID, link *Link) {
	m.mu.Lock()
	if m.links[id] == link {
		delete(m.links, id)
	}
	m.mu.Unlock()
	link.Close()
	if m.OnLinkClosed != nil {
		m.OnLinkClosed(id)
	}
}

func roleName(r Role) string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}
