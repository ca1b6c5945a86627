package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
)

func TestRegistryJoinReturnsOthers(t *testing.T) {
	r := NewRegistry()

	others, err := r.Join("conn-a", "alice", domain.Vec3{})
	require.NoError(t, err)
	assert.Empty(t, others, "first joiner sees nobody")

	others, err = r.Join("conn-b", "bob", domain.Vec3{X: 30})
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, domain.ConnectionID("conn-a"), others[0].ID)
	assert.Equal(t, "alice", others[0].DisplayName)
}

func TestRegistryDuplicateJoinFails(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("conn-a", "alice", domain.Vec3{})
	require.NoError(t, err)

	_, err = r.Join("conn-a", "impostor", domain.Vec3{})
	assert.ErrorIs(t, err, ErrDuplicateConnection)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryJoinRejectsBadName(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("conn-a", "", domain.Vec3{})
	assert.ErrorIs(t, err, domain.ErrNameEmpty)

	long := make([]byte, domain.MaxDisplayNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = r.Join("conn-a", string(long), domain.Vec3{})
	assert.ErrorIs(t, err, domain.ErrNameTooLong)
}

func TestRegistryLeaveUnknownIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Leave("never-joined")
	assert.Equal(t, 0, r.Count())
}

func TestRegistryPositionUpdateUnknownIsDropped(t *testing.T) {
	r := NewRegistry()
	var events []Event
	r.Watch(func(ev Event) { events = append(events, ev) })

	r.UpdatePosition("gone", domain.Vec3{X: 1})
	assert.Empty(t, events)
}

func TestRegistryEventOrderPerParticipant(t *testing.T) {
	r := NewRegistry()
	var events []Event
	r.Watch(func(ev Event) { events = append(events, ev) })

	_, err := r.Join("conn-a", "alice", domain.Vec3{})
	require.NoError(t, err)
	r.UpdatePosition("conn-a", domain.Vec3{X: 1})
	r.UpdatePosition("conn-a", domain.Vec3{X: 2})
	r.Leave("conn-a")

	require.Len(t, events, 4)
	assert.Equal(t, ParticipantJoined, events[0].Kind)
	assert.Equal(t, PositionChanged, events[1].Kind)
	assert.Equal(t, 1.0, events[1].Participant.Position.X)
	assert.Equal(t, PositionChanged, events[2].Kind)
	assert.Equal(t, 2.0, events[2].Participant.Position.X)
	assert.Equal(t, ParticipantLeft, events[3].Kind)
}

func TestRegistryVoiceStateByDisplayName(t *testing.T) {
	r := NewRegistry()
	var events []Event
	r.Watch(func(ev Event) { events = append(events, ev) })

	_, err := r.Join("conn-a", "alice", domain.Vec3{})
	require.NoError(t, err)

	r.UpdateVoiceState("alice", true, -20)

	last := events[len(events)-1]
	assert.Equal(t, VoiceStateChanged, last.Kind)
	assert.True(t, last.Participant.Voice.Talking)
	assert.Equal(t, -20.0, last.Participant.Voice.LevelDb)

	// Unknown name is a race, not an error.
	before := len(events)
	r.UpdateVoiceState("nobody", true, -20)
	assert.Len(t, events, before)
}

func TestRegistryVoiceStateAmbiguousNamePicksSmallestID(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("conn-b", "twin", domain.Vec3{})
	require.NoError(t, err)
	_, err = r.Join("conn-a", "twin", domain.Vec3{})
	require.NoError(t, err)

	var got domain.ConnectionID
	r.Watch(func(ev Event) {
		if ev.Kind == VoiceStateChanged {
			got = ev.Participant.ID
		}
	})
	r.UpdateVoiceState("twin", true, -18)
	assert.Equal(t, domain.ConnectionID("conn-a"), got)
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Join("conn-a", "alice", domain.Vec3{})
	_, _ = r.Join("conn-b", "bob", domain.Vec3{X: 10})

	snap := r.Snapshot()
	assert.Len(t, snap, 2)
}
