package vad

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSampleInterval is the reference sampling cadence.
const DefaultSampleInterval = 100 * time.Millisecond

// LevelSource delivers the most recent frame of centered audio samples. It
// must never block on network I/O.
type LevelSource interface {
	Samples() []float64
}

// Sampler drives a Detector from a LevelSource on a fixed ticker, independent
// of any negotiation or socket state. Every tick emits a level update;
// transitions are reported separately.
type Sampler struct {
	source   LevelSource
	detector *Detector
	interval time.Duration

	// OnLevel fires every tick with the measured level and current state.
	OnLevel func(levelDb float64, talking bool)
	// OnTransition fires only when the talking state flips.
	OnTransition func(talking bool, levelDb float64)
}

func NewSampler(source LevelSource, detector *Detector, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{source: source, detector: detector, interval: interval}
}

// Run blocks until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "vad").Msg("sampler stopped")
			return
		case now := <-ticker.C:
			level := LevelDb(s.source.Samples())
			changed, talking := s.detector.Process(level, now)
			if changed && s.OnTransition != nil {
				s.OnTransition(talking, level)
			}
			if s.OnLevel != nil {
				s.OnLevel(level, talking)
			}
		}
	}
}
