package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/EmilioRXD/Chat-de-voz/internal/client"
	"github.com/EmilioRXD/Chat-de-voz/internal/config"
	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
	"github.com/EmilioRXD/Chat-de-voz/internal/media"
	"github.com/EmilioRXD/Chat-de-voz/internal/spatial"
	"github.com/EmilioRXD/Chat-de-voz/internal/vad"
)

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/api/ws/signal", "signaling server websocket URL")
	name := flag.String("name", "", "display name")
	x := flag.Float64("x", 0, "initial x position")
	y := flag.Float64("y", 0, "initial y position")
	z := flag.Float64("z", 0, "initial z position")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sess, err := client.NewSession(client.Options{
		ServerURL:   *serverURL,
		DisplayName: *name,
		Position:    domain.Vec3{X: *x, Y: *y, Z: *z},
		Spatial: spatial.Params{
			MinDistance:   cfg.Spatial.MinDistance,
			MaxDistance:   cfg.Spatial.MaxDistance,
			RolloffFactor: cfg.Spatial.RolloffFactor,
		},
		Sensitivity: vad.ParseSensitivity(cfg.Voice.Sensitivity),
		SampleInt:   cfg.Voice.SampleInterval,
		SilenceHold: cfg.Voice.SilenceHold,
		Source:      media.NewSilenceSource(),
	})
	if err != nil {
		if errors.Is(err, media.ErrMediaAccessDenied) {
			log.Fatal().Err(err).Msg("cannot start without a capture device")
		}
		log.Fatal().Err(err).Msg("session setup failed")
	}

	sess.OnPeerVoice = func(id domain.ConnectionID, name string, talking bool, levelDb float64) {
		log.Debug().Str("peer", name).Bool("talking", talking).Float64("level_db", levelDb).Msg("voice state")
	}

	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("session ended")
		os.Exit(1)
	}
	log.Info().Msg("client exited gracefully")
}
