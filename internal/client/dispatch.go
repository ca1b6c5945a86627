package client

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
	"github.com/EmilioRXD/Chat-de-voz/internal/mesh"
	"github.com/EmilioRXD/Chat-de-voz/internal/protocol"
)

func (s *Session) dispatch(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad json")
		return
	}

	switch env.Type {
	case protocol.MsgSnapshot:
		s.handleSnapshot(data)
	case protocol.MsgParticipantJoined:
		s.handleParticipantJoined(data)
	case protocol.MsgParticipantLeft:
		s.handleParticipantLeft(data)
	case protocol.MsgPositionChanged:
		s.handlePositionChanged(data)
	case protocol.MsgNegotiation:
		s.handleNegotiation(data)
	case protocol.MsgVoiceChanged:
		s.handleVoiceChanged(data)
	case protocol.MsgAuthorityFrame:
		s.handleAuthorityFrame(data)
	case protocol.MsgPong:
	case protocol.MsgError:
		var p protocol.Error
		_ = json.Unmarshal(data, &p)
		log.Error().Str("module", "client").Str("error", p.Error).Msg("server error")
	default:
		log.Warn().Str("module", "client").Str("type", env.Type).Msg("unknown message")
	}
}

func (s *Session) handleSnapshot(data []byte) {
	var p protocol.Snapshot
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad snapshot")
		return
	}

	s.mu.Lock()
	s.selfID = p.SelfID
	s.mesh = mesh.NewManager(p.SelfID, s, s.pump.Track())
	pending := s.pendingNeg
	s.pendingNeg = nil
	s.mu.Unlock()

	log.Info().Str("module", "client").Str("self_id", string(p.SelfID)).Int("participants", len(p.Participants)).Msg("joined")

	for _, part := range p.Participants {
		s.addPeer(part)
	}
	for _, raw := range pending {
		s.handleNegotiation(raw)
	}
}

func (s *Session) handleParticipantJoined(data []byte) {
	var p protocol.ParticipantJoined
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad participant-joined")
		return
	}
	s.addPeer(p.Participant)
}

func (s *Session) addPeer(p domain.Participant) {
	s.mu.Lock()
	s.roster[p.ID] = p.DisplayName
	m := s.mesh
	s.mu.Unlock()

	s.engine.AddPeer(p.ID, p.Position)
	if m == nil {
		return
	}
	if err := m.AddPeer(p.ID, p.DisplayName); err != nil {
		// Isolated to this peer; a registry event may retry it later.
		log.Error().Err(err).Str("module", "client").Str("peer", string(p.ID)).Msg("peer setup failed")
	}
}

func (s *Session) handleParticipantLeft(data []byte) {
	var p protocol.ParticipantLeft
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad participant-left")
		return
	}

	s.mu.Lock()
	delete(s.roster, p.ID)
	m := s.mesh
	s.mu.Unlock()

	if m != nil {
		m.RemovePeer(p.ID)
	}
	s.engine.RemovePeer(p.ID)
}

func (s *Session) handlePositionChanged(data []byte) {
	var p protocol.PositionChanged
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad position-changed")
		return
	}
	// Under an active authority the frames own peer positions too; relayed
	// local movement is stale by definition.
	if s.rec.Active() {
		return
	}
	s.engine.SetPeerPosition(p.ID, p.Position)
}

func (s *Session) handleNegotiation(data []byte) {
	var p protocol.NegotiationOut
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad negotiation")
		return
	}

	s.mu.Lock()
	m := s.mesh
	if m == nil {
		// The snapshot has not landed yet; a fast peer's offer can overtake
		// it. Keep the frame until the mesh exists.
		s.pendingNeg = append(s.pendingNeg, data)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := m.HandleNegotiation(p.From, p.Message); err != nil {
		log.Warn().Err(err).Str("module", "client").Str("peer", string(p.From)).Msg("negotiation failed, peer dropped")
	}
}

func (s *Session) handleVoiceChanged(data []byte) {
	var p protocol.VoiceChanged
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad voice-changed")
		return
	}
	if s.OnPeerVoice != nil {
		s.OnPeerVoice(p.ID, p.DisplayName, p.Talking, p.LevelDb)
	}
}

func (s *Session) handleAuthorityFrame(data []byte) {
	var p protocol.AuthorityFrameMsg
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad authority frame")
		return
	}
	s.rec.Apply(p.Frame)
}
