package protocol

import "github.com/EmilioRXD/Chat-de-voz/internal/domain"

// AuthorityFrame is the full snapshot an external authoritative world (a game
// server) pushes periodically. Each frame completely replaces the previous
// view; nothing is persisted. Entities are keyed by display name because the
// authority has no notion of connection ids.
type AuthorityFrame struct {
	Entities     []AuthorityEntity `json:"entities" binding:"required"`
	GlobalConfig *AuthorityConfig  `json:"global_config,omitempty"`
}

type AuthorityEntity struct {
	Name     string             `json:"name" binding:"required"`
	Position domain.Vec3        `json:"position"`
	Settings *AuthoritySettings `json:"settings,omitempty"`
}

// AuthoritySettings are per-entity overrides. Muted/Deafened apply to the
// entity itself; Volumes maps peer display names to custom volume factors.
type AuthoritySettings struct {
	Muted    bool               `json:"muted"`
	Deafened bool               `json:"deafened"`
	Volumes  map[string]float64 `json:"volumes,omitempty"`
}

type AuthorityConfig struct {
	MinAudibleDistance *float64 `json:"min_audible_distance,omitempty"`
	MaxAudibleDistance *float64 `json:"max_audible_distance,omitempty"`
	RolloffFactor      *float64 `json:"rolloff_factor,omitempty"`
}

// AuthorityResponse is the synchronous reply to an authority push. The
// authority polls voice and connection state through its own push cadence;
// there is no separate pull endpoint.
type AuthorityResponse struct {
	Success          bool                  `json:"success"`
	VoiceStates      []AuthorityVoiceState `json:"voice_states"`
	ConnectionStates []AuthorityConnection `json:"connection_states"`
}

type AuthorityVoiceState struct {
	DisplayName string  `json:"display_name"`
	Talking     bool    `json:"is_talking"`
	LevelDb     float64 `json:"level_db"`
}

type AuthorityConnection struct {
	DisplayName string `json:"display_name"`
	Connected   bool   `json:"is_connected"`
}

// AuthorityFrameMsg wraps a frame for fan-out to connected clients, whose
// reconcilers consume it.
type AuthorityFrameMsg struct {
	Type  string         `json:"type"`
	Frame AuthorityFrame `json:"frame"`
}
