package media

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	mu     sync.Mutex
	frames int
	closed bool
}

func (s *scriptedSource) ReadFrame() ([]byte, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames == 0 {
		return nil, 0, io.EOF
	}
	s.frames--
	return []byte{0x01, 0x02}, 20 * time.Millisecond, nil
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestPumpRunsUntilSourceEOF(t *testing.T) {
	track, err := NewMicTrack()
	require.NoError(t, err)

	src := &scriptedSource{frames: 3}
	p := NewPump(track, src, 0x1234)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop on EOF")
	}
	assert.True(t, src.isClosed(), "pump closes the source on exit")
}

func TestPumpSwapSourceClosesOld(t *testing.T) {
	track, err := NewMicTrack()
	require.NoError(t, err)

	old := &scriptedSource{frames: 1000}
	p := NewPump(track, old, 0x1234)

	next := &scriptedSource{frames: 1000}
	p.SwapSource(next)

	assert.True(t, old.isClosed())
	assert.False(t, next.isClosed())
	assert.Same(t, next, p.source().(*scriptedSource))
}

func TestPumpStopsOnContextCancel(t *testing.T) {
	track, err := NewMicTrack()
	require.NoError(t, err)

	p := NewPump(track, NewSilenceSource(), 0x1234)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop on cancel")
	}
}
