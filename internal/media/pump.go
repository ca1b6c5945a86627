// Package media feeds the local audio source onto the outbound track.
package media

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// ErrMediaAccessDenied means the capture device could not be opened. Fatal to
// session start.
var ErrMediaAccessDenied = errors.New("media access denied")

const (
	opusClockRate = 48000
	rtpMTU        = 1200
	opusPayload   = 111
)

// Source delivers encoded audio frames at capture pace. ReadFrame blocks for
// the frame duration; it returns io.EOF when the source is exhausted.
type Source interface {
	ReadFrame() (payload []byte, duration time.Duration, err error)
	Close() error
}

// NewMicTrack builds the outbound Opus track shared by every peer connection.
func NewMicTrack() (*webrtc.TrackLocalStaticRTP, error) {
	return webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: opusClockRate,
		Channels:  2,
	}, "audio", "mic")
}

// Pump packetizes source frames onto the track. The source can be swapped
// while running; the track, and therefore every in-flight channel, is never
// interrupted.
type Pump struct {
	track      *webrtc.TrackLocalStaticRTP
	packetizer rtp.Packetizer

	mu  sync.Mutex
	src Source
}

func NewPump(track *webrtc.TrackLocalStaticRTP, src Source, ssrc uint32) *Pump {
	return &Pump{
		track: track,
		packetizer: rtp.NewPacketizer(
			rtpMTU,
			opusPayload,
			ssrc,
			&codecs.OpusPayloader{},
			rtp.NewRandomSequencer(),
			opusClockRate,
		),
		src: src,
	}
}

// Track exposes the outbound track for attaching to peer connections.
func (p *Pump) Track() *webrtc.TrackLocalStaticRTP {
	return p.track
}

// SwapSource replaces the input device. The old source is closed after the
// new one is installed, so no read observes a torn state.
func (p *Pump) SwapSource(src Source) {
	p.mu.Lock()
	old := p.src
	p.src = src
	p.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	log.Info().Str("module", "media").Msg("audio source swapped")
}

func (p *Pump) source() Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.src
}

// Run blocks until ctx is done or the source ends.
func (p *Pump) Run(ctx context.Context) {
	defer func() {
		if src := p.source(); src != nil {
			_ = src.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "media").Msg("pump stopped")
			return
		default:
		}

		src := p.source()
		if src == nil {
			return
		}
		payload, duration, err := src.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Str("module", "media").Msg("source exhausted")
				return
			}
			log.Error().Err(err).Str("module", "media").Msg("read frame")
			return
		}

		samples := uint32(duration.Seconds() * opusClockRate)
		for _, pkt := range p.packetizer.Packetize(payload, samples) {
			if err := p.track.WriteRTP(pkt); err != nil {
				log.Error().Err(err).Str("module", "media").Msg("write RTP")
			}
		}
	}
}
