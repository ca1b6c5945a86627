package media

import (
	"sync"
	"time"
)

// opusSilence is a single Opus DTX frame.
var opusSilence = []byte{0xF8, 0xFF, 0xFE}

const silenceFrameDuration = 20 * time.Millisecond

// SilenceSource keeps the outbound track alive with DTX frames when no real
// capture device is wired in. It also serves as a level source reading all
// zeros, so the detector stays in Silent.
type SilenceSource struct {
	mu     sync.Mutex
	closed bool
}

func NewSilenceSource() *SilenceSource {
	return &SilenceSource{}
}

func (s *SilenceSource) ReadFrame() ([]byte, time.Duration, error) {
	time.Sleep(silenceFrameDuration)
	frame := make([]byte, len(opusSilence))
	copy(frame, opusSilence)
	return frame, silenceFrameDuration, nil
}

func (s *SilenceSource) Samples() []float64 { return nil }

func (s *SilenceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
