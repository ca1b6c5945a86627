// Package spatial computes per-peer loudness from virtual distance.
package spatial

import "math"

const (
	DefaultMinDistance   = 5.0
	DefaultMaxDistance   = 50.0
	DefaultRolloffFactor = 1.5
)

// Params describe the distance-to-gain curve: full volume inside MinDistance,
// silence beyond MaxDistance, a rolloff power curve in between.
type Params struct {
	MinDistance   float64
	MaxDistance   float64
	RolloffFactor float64
}

func DefaultParams() Params {
	return Params{
		MinDistance:   DefaultMinDistance,
		MaxDistance:   DefaultMaxDistance,
		RolloffFactor: DefaultRolloffFactor,
	}
}

// Gain is the pure distance law. Deterministic, no side effects; smoothing is
// applied at the sink, never here.
func Gain(distance float64, p Params) float64 {
	switch {
	case distance <= p.MinDistance:
		return 1.0
	case distance >= p.MaxDistance:
		return 0.0
	}
	t := (distance - p.MinDistance) / (p.MaxDistance - p.MinDistance)
	return math.Pow(1-t, p.RolloffFactor)
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
