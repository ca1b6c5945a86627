// Package authority reconciles frames from an authoritative external world
// against the local spatial audio state.
package authority

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
	"github.com/EmilioRXD/Chat-de-voz/internal/protocol"
	"github.com/EmilioRXD/Chat-de-voz/internal/spatial"
)

// Roster maps display names to live connection ids. Display names are not
// guaranteed unique; the reconciler resolves collisions deterministically.
type Roster interface {
	IDsByName(name string) []domain.ConnectionID
}

// Reconciler applies authority frames. While a frame lacks the local display
// name, the client treats itself as outside the authoritative context and
// every gain is forced to zero; spatial audio never plays unverified.
type Reconciler struct {
	localName string
	engine    *spatial.Engine
	roster    Roster
	base      spatial.Params

	// OnSelfMute propagates the authority's mute flag for the local entity
	// (outbound audio). Optional.
	OnSelfMute func(muted bool)

	mu   sync.Mutex
	seen bool
}

func NewReconciler(localName string, engine *spatial.Engine, roster Roster) *Reconciler {
	return &Reconciler{
		localName: localName,
		engine:    engine,
		roster:    roster,
		base:      engine.Params(),
	}
}

// Active reports whether at least one frame has been applied. Once the
// authority has spoken, local movement input no longer drives position.
func (r *Reconciler) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen
}

// Apply consumes one frame. Each frame fully replaces the previous view.
func (r *Reconciler) Apply(frame protocol.AuthorityFrame) {
	r.mu.Lock()
	r.seen = true
	r.mu.Unlock()

	r.engine.SetParams(r.paramsFor(frame.GlobalConfig))

	var local *protocol.AuthorityEntity
	for i := range frame.Entities {
		if frame.Entities[i].Name == r.localName {
			local = &frame.Entities[i]
			break
		}
	}
	if local == nil {
		log.Warn().Str("module", "authority").Str("name", r.localName).Msg("local entity missing from frame, muting all peers")
		r.engine.SetAuthorityPresent(false)
		return
	}
	r.engine.SetAuthorityPresent(true)

	// The authoritative source always wins over local movement input.
	r.engine.SetSelfPosition(local.Position)
	if local.Settings != nil {
		r.engine.SetDeafened(local.Settings.Deafened)
		if r.OnSelfMute != nil {
			r.OnSelfMute(local.Settings.Muted)
		}
		for peerName, factor := range local.Settings.Volumes {
			if id, ok := r.resolve(peerName); ok {
				r.engine.SetPeerVolume(id, factor)
			}
		}
	}

	for i := range frame.Entities {
		e := &frame.Entities[i]
		if e.Name == r.localName {
			continue
		}
		id, ok := r.resolve(e.Name)
		if !ok {
			// Entities with no connected participant are expected: the
			// world knows more actors than the voice system does.
			continue
		}
		r.engine.SetPeerPosition(id, e.Position)
		if e.Settings != nil {
			r.engine.SetPeerMuted(id, e.Settings.Muted)
		}
	}
}

// resolve maps an authority entity name onto a connection id. Two
// participants sharing a display name are indistinguishable to the authority;
// the lexicographically smallest id wins and the ambiguity is logged.
func (r *Reconciler) resolve(name string) (domain.ConnectionID, bool) {
	ids := r.roster.IDsByName(name)
	if len(ids) == 0 {
		return "", false
	}
	if len(ids) > 1 {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		log.Warn().Str("module", "authority").Str("name", name).Int("matches", len(ids)).Msg("ambiguous identity match, using smallest connection id")
	}
	return ids[0], true
}

func (r *Reconciler) paramsFor(cfg *protocol.AuthorityConfig) spatial.Params {
	p := r.base
	if cfg == nil {
		return p
	}
	if cfg.MinAudibleDistance != nil {
		p.MinDistance = *cfg.MinAudibleDistance
	}
	if cfg.MaxAudibleDistance != nil {
		p.MaxDistance = *cfg.MaxAudibleDistance
	}
	if cfg.RolloffFactor != nil {
		p.RolloffFactor = *cfg.RolloffFactor
	}
	return p
}
