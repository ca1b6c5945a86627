// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 36

var (
	ErrNameTooLong = errors.New("display name too long")
	ErrNameEmpty   = errors.New("display name empty")
)

// ConnectionID is the opaque token the relay assigns to a live connection.
// Unique for the connection's lifetime, never reused.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// VoiceState is the detector output attached to a participant.
type VoiceState struct {
	Talking bool    `json:"is_talking"`
	LevelDb float64 `json:"level_db"`
}

// Participant is a registered voice-chat endpoint as the registry sees it.
// The registry owns the canonical copy; everything else gets value copies.
type Participant struct {
	ID          ConnectionID `json:"id"`
	DisplayName string       `json:"display_name"`
	Position    Vec3         `json:"position"`
	Voice       VoiceState   `json:"voice"`
}

func ValidateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrNameTooLong
	}
	return nil
}
