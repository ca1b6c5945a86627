package app

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
)

var ErrDuplicateConnection = errors.New("connection id already registered")

type participantEntry struct {
	mu sync.Mutex
	p  domain.Participant
}

// Registry is the canonical, single-writer store of participant existence,
// position and voice state. The outer RWMutex guards membership only;
// mutations of one participant lock that participant's entry, so updates for
// unrelated connections never block each other.
type Registry struct {
	mu           sync.RWMutex
	participants map[domain.ConnectionID]*participantEntry

	watchMu  sync.RWMutex
	watchers []Watcher
}

func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[domain.ConnectionID]*participantEntry),
	}
}

// Watch registers a watcher for registry events. Watchers are invoked
// synchronously on the apply path and must not block; slow consumers buffer on
// their own side (see Hub).
func (r *Registry) Watch(w Watcher) {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	r.watchers = append(r.watchers, w)
}

func (r *Registry) emit(ev Event) {
	r.watchMu.RLock()
	defer r.watchMu.RUnlock()
	for _, w := range r.watchers {
		w(ev)
	}
}

// Join registers a new participant and returns every other currently
// registered participant. The connection id is relay-assigned, so a collision
// is a bug on the caller's side and fatal to this join attempt.
func (r *Registry) Join(id domain.ConnectionID, displayName string, pos domain.Vec3) ([]domain.Participant, error) {
	if err := domain.ValidateDisplayName(displayName); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, ok := r.participants[id]; ok {
		r.mu.Unlock()
		return nil, ErrDuplicateConnection
	}
	entry := &participantEntry{p: domain.Participant{
		ID:          id,
		DisplayName: displayName,
		Position:    pos,
	}}
	r.participants[id] = entry

	others := make([]domain.Participant, 0, len(r.participants)-1)
	for oid, e := range r.participants {
		if oid == id {
			continue
		}
		e.mu.Lock()
		others = append(others, e.p)
		e.mu.Unlock()
	}
	ev := Event{Kind: ParticipantJoined, Participant: entry.p}
	r.emit(ev)
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("id", string(id)).Str("name", displayName).Msg("participant joined")
	return others, nil
}

// Leave removes a participant. Disconnects race with other cleanup, so an
// unknown id is a no-op, not an error.
func (r *Registry) Leave(id domain.ConnectionID) {
	r.mu.Lock()
	entry, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.participants, id)
	r.emit(Event{Kind: ParticipantLeft, Participant: entry.p})
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("id", string(id)).Msg("participant left")
}

// UpdatePosition applies a position change. A position update for a
// since-departed participant is expected under disconnect races and is logged,
// never propagated.
func (r *Registry) UpdatePosition(id domain.ConnectionID, pos domain.Vec3) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.participants[id]
	if !ok {
		log.Debug().Str("module", "app.registry").Str("id", string(id)).Msg("position update for unknown participant")
		return
	}
	// Emit under the entry lock so watchers see this id's events in apply
	// order.
	entry.mu.Lock()
	entry.p.Position = pos
	r.emit(Event{Kind: PositionChanged, Participant: entry.p})
	entry.mu.Unlock()
}

// UpdateVoiceState is keyed by display name: the voice-state authority may
// live in a process without a connection id of its own. When several
// participants share the name, the lexicographically smallest connection id
// wins and the ambiguity is logged.
func (r *Registry) UpdateVoiceState(displayName string, talking bool, levelDb float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, matches := r.byName(displayName)
	if entry == nil {
		log.Debug().Str("module", "app.registry").Str("name", displayName).Msg("voice state for unknown participant")
		return
	}
	if matches > 1 {
		log.Warn().Str("module", "app.registry").Str("name", displayName).Int("matches", matches).Msg("ambiguous display name, using smallest connection id")
	}

	entry.mu.Lock()
	entry.p.Voice = domain.VoiceState{Talking: talking, LevelDb: levelDb}
	r.emit(Event{Kind: VoiceStateChanged, Participant: entry.p})
	entry.mu.Unlock()
}

// byName resolves a display name under the read lock. Returns the entry with
// the smallest connection id and the number of matches.
func (r *Registry) byName(displayName string) (*participantEntry, int) {
	ids := make([]domain.ConnectionID, 0, 1)
	for id, e := range r.participants {
		if e.p.DisplayName == displayName {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, 0
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return r.participants[ids[0]], len(ids)
}

// Snapshot returns a copy of every registered participant.
func (r *Registry) Snapshot() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Participant, 0, len(r.participants))
	for _, e := range r.participants {
		e.mu.Lock()
		out = append(out, e.p)
		e.mu.Unlock()
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}
