package spatial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
)

const (
	peerA = domain.ConnectionID("peer-a")
	peerB = domain.ConnectionID("peer-b")
)

func newTestEngine() *Engine {
	e := NewEngine(DefaultParams())
	e.SetSelfPosition(domain.Vec3{})
	return e
}

func TestEngineDistanceTarget(t *testing.T) {
	e := newTestEngine()
	e.AddPeer(peerA, domain.Vec3{X: 30})

	g, ok := e.TargetFor(peerA)
	require.True(t, ok)
	assert.InDelta(t, 0.2962, g, 1e-4)

	e.SetPeerPosition(peerA, domain.Vec3{X: 60})
	g, _ = e.TargetFor(peerA)
	assert.Equal(t, 0.0, g)
}

func TestEngineDeafenForcesAllToZero(t *testing.T) {
	e := newTestEngine()
	e.AddPeer(peerA, domain.Vec3{X: 1})
	e.AddPeer(peerB, domain.Vec3{X: 30})

	e.SetDeafened(true)
	for _, id := range []domain.ConnectionID{peerA, peerB} {
		g, _ := e.TargetFor(id)
		assert.Equal(t, 0.0, g)
	}

	e.SetDeafened(false)
	g, _ := e.TargetFor(peerA)
	assert.Equal(t, 1.0, g)
}

func TestEngineMuteIsPerPeer(t *testing.T) {
	e := newTestEngine()
	e.AddPeer(peerA, domain.Vec3{X: 1})
	e.AddPeer(peerB, domain.Vec3{X: 1})

	e.SetPeerMuted(peerA, true)

	g, _ := e.TargetFor(peerA)
	assert.Equal(t, 0.0, g)
	g, _ = e.TargetFor(peerB)
	assert.Equal(t, 1.0, g)
}

func TestEngineCustomVolumeFactor(t *testing.T) {
	e := newTestEngine()
	e.AddPeer(peerA, domain.Vec3{X: 1})

	e.SetPeerVolume(peerA, 0.5)
	g, _ := e.TargetFor(peerA)
	assert.Equal(t, 0.5, g)

	// Factors above 1 never push the clamped gain past full volume.
	e.SetPeerVolume(peerA, 3.0)
	g, _ = e.TargetFor(peerA)
	assert.Equal(t, 1.0, g)
}

func TestEngineAuthorityLostForcesZero(t *testing.T) {
	e := newTestEngine()
	e.AddPeer(peerA, domain.Vec3{X: 1})

	e.SetAuthorityPresent(false)
	g, _ := e.TargetFor(peerA)
	assert.Equal(t, 0.0, g, "in-range peer must be silent without authority")

	e.SetAuthorityPresent(true)
	g, _ = e.TargetFor(peerA)
	assert.Equal(t, 1.0, g)
}

func TestEngineStepApproachesTarget(t *testing.T) {
	e := newTestEngine()
	e.AddPeer(peerA, domain.Vec3{X: 1}) // target 1.0, current starts at 0

	var g float64
	prev := 0.0
	for i := 0; i < 4; i++ {
		g = e.Step(50 * time.Millisecond)[peerA]
		assert.Greater(t, g, prev, "gain must rise monotonically toward target")
		assert.Less(t, g, 1.0, "smoothed gain must not jump to target")
		prev = g
	}

	// After many time constants it converges.
	for i := 0; i < 100; i++ {
		g = e.Step(50 * time.Millisecond)[peerA]
	}
	assert.InDelta(t, 1.0, g, 1e-6)
}

func TestEngineRemovePeer(t *testing.T) {
	e := newTestEngine()
	e.AddPeer(peerA, domain.Vec3{})
	e.RemovePeer(peerA)

	_, ok := e.TargetFor(peerA)
	assert.False(t, ok)
	assert.Empty(t, e.Step(50*time.Millisecond))
}

func TestEngineParamsOverride(t *testing.T) {
	e := newTestEngine()
	e.AddPeer(peerA, domain.Vec3{X: 30})

	// Shrinking the audible range pushes a 30 m peer out of it.
	p := e.Params()
	p.MaxDistance = 20
	e.SetParams(p)

	g, _ := e.TargetFor(peerA)
	assert.Equal(t, 0.0, g)
}
