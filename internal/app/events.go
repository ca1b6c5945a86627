package app

import "github.com/EmilioRXD/Chat-de-voz/internal/domain"

type EventKind int

const (
	ParticipantJoined EventKind = iota
	ParticipantLeft
	PositionChanged
	VoiceStateChanged
)

func (k EventKind) String() string {
	switch k {
	case ParticipantJoined:
		return "participant_joined"
	case ParticipantLeft:
		return "participant_left"
	case PositionChanged:
		return "position_changed"
	case VoiceStateChanged:
		return "voice_state_changed"
	}
	return "unknown"
}

// Event is a registry change notification. Participant is a value copy taken
// while the change was applied; watchers never see the registry's own structs.
type Event struct {
	Kind        EventKind
	Participant domain.Participant
}

// Watcher receives registry events. Events for a single connection id arrive
// in the order the registry applied them; there is no ordering guarantee
// across different ids.
type Watcher func(Event)
