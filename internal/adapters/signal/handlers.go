package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/EmilioRXD/Chat-de-voz/internal/app"
	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
	"github.com/EmilioRXD/Chat-de-voz/internal/protocol"
)

func (ctl *Controller) handleJoin(id domain.ConnectionID, c *WsConn, data []byte) {
	var p protocol.Join
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	others, err := ctl.Registry.Join(id, p.DisplayName, p.Position)
	if err != nil {
		if errors.Is(err, app.ErrDuplicateConnection) {
			log.Error().Str("module", "signal").Str("id", string(id)).Msg("duplicate join")
			ctl.sendError(c, "duplicate_connection")
			return
		}
		log.Warn().Err(err).Str("module", "signal").Str("id", string(id)).Msg("join rejected")
		ctl.sendError(c, err.Error())
		return
	}

	ctl.sendJSON(c, protocol.Snapshot{
		Type:         protocol.MsgSnapshot,
		SelfID:       id,
		Participants: others,
	})
}

func (ctl *Controller) handlePositionUpdate(id domain.ConnectionID, data []byte) {
	var p protocol.PositionUpdate
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad position payload")
		return
	}
	ctl.Registry.UpdatePosition(id, p.Position)
}

// handleNegotiation forwards the body untouched. Only the envelope and target
// id are decoded here; the relay stays format-agnostic about the payload.
func (ctl *Controller) handleNegotiation(id domain.ConnectionID, data []byte) {
	var p protocol.NegotiationIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad negotiation payload")
		return
	}
	if p.To == "" || len(p.Message) == 0 {
		log.Warn().Str("module", "signal").Str("from", string(id)).Msg("negotiation without target or body")
		return
	}

	out, err := json.Marshal(protocol.NegotiationOut{
		Type:    protocol.MsgNegotiation,
		From:    id,
		Message: p.Message,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("negotiation marshal")
		return
	}
	ctl.Hub.Forward(id, p.To, out)
}

func (ctl *Controller) handleVoiceActivity(data []byte) {
	var p protocol.VoiceActivity
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad voice payload")
		return
	}
	ctl.Registry.UpdateVoiceState(p.DisplayName, p.Talking, p.LevelDb)
}

// onRegistryEvent fans registry changes out to every live connection except
// the participant the event is about.
func (ctl *Controller) onRegistryEvent(ev app.Event) {
	var frame any
	switch ev.Kind {
	case app.ParticipantJoined:
		frame = protocol.ParticipantJoined{Type: protocol.MsgParticipantJoined, Participant: ev.Participant}
	case app.ParticipantLeft:
		frame = protocol.ParticipantLeft{Type: protocol.MsgParticipantLeft, ID: ev.Participant.ID}
	case app.PositionChanged:
		frame = protocol.PositionChanged{Type: protocol.MsgPositionChanged, ID: ev.Participant.ID, Position: ev.Participant.Position}
	case app.VoiceStateChanged:
		frame = protocol.VoiceChanged{
			Type:        protocol.MsgVoiceChanged,
			ID:          ev.Participant.ID,
			DisplayName: ev.Participant.DisplayName,
			Talking:     ev.Participant.Voice.Talking,
			LevelDb:     ev.Participant.Voice.LevelDb,
		}
	default:
		return
	}

	b, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("event marshal")
		return
	}
	ctl.Hub.Broadcast(ev.Participant.ID, b)
}
