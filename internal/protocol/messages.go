// Package protocol defines the wire messages exchanged over the signaling
// channel. Every frame is a JSON object carrying a "type" discriminator;
// payload structs are decoded per type after peeking at the envelope.
package protocol

import (
	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
)

const (
	MsgJoin              = "join"
	MsgSnapshot          = "snapshot"
	MsgParticipantJoined = "participant-joined"
	MsgParticipantLeft   = "participant-left"
	MsgPositionUpdate    = "position-update"
	MsgPositionChanged   = "position-changed"
	MsgNegotiation       = "negotiation"
	MsgVoiceActivity     = "voice-activity"
	MsgVoiceChanged      = "voice-changed"
	MsgAuthorityFrame    = "authority-frame"
	MsgPing              = "ping"
	MsgPong              = "pong"
	MsgError             = "error"
)

// Envelope is the minimal frame shape used to dispatch on type.
type Envelope struct {
	Type string `json:"type"`
}

type Join struct {
	Type        string      `json:"type"`
	DisplayName string      `json:"display_name"`
	Position    domain.Vec3 `json:"position"`
}

// Snapshot is the join response: the joiner's assigned connection id plus
// every other currently registered participant.
type Snapshot struct {
	Type         string               `json:"type"`
	SelfID       domain.ConnectionID  `json:"self_id"`
	Participants []domain.Participant `json:"participants"`
}

type ParticipantJoined struct {
	Type        string             `json:"type"`
	Participant domain.Participant `json:"participant"`
}

type ParticipantLeft struct {
	Type string              `json:"type"`
	ID   domain.ConnectionID `json:"id"`
}

type PositionUpdate struct {
	Type     string      `json:"type"`
	Position domain.Vec3 `json:"position"`
}

type PositionChanged struct {
	Type     string              `json:"type"`
	ID       domain.ConnectionID `json:"id"`
	Position domain.Vec3         `json:"position"`
}

type VoiceActivity struct {
	Type        string  `json:"type"`
	DisplayName string  `json:"display_name"`
	Talking     bool    `json:"is_talking"`
	LevelDb     float64 `json:"level_db"`
}

type VoiceChanged struct {
	Type        string              `json:"type"`
	ID          domain.ConnectionID `json:"id"`
	DisplayName string              `json:"display_name"`
	Talking     bool                `json:"is_talking"`
	LevelDb     float64             `json:"level_db"`
}

type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
