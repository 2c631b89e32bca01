// Package main provides the screen ingest shell. A platform capture process
// pipes NDJSON frames into it; each line is forwarded to the daemon as the
// current foreground view.
package main

import (
	"bufio"
	"context"
	"flag"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/pkg/client"
	"github.com/thebtf/aura/pkg/models"
)

// Version is stamped at release time through ldflags.
var Version = "dev"

func main() {
	start := flag.Bool("start", true, "Start the screen sentinel before forwarding")
	debug := flag.Bool("debug", false, "Log at debug level")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if _, err := client.EnsureRunning(Version); err != nil {
		log.Fatal().Err(err).Msg("Daemon unavailable")
	}
	api := client.NewFromEnv()

	ctx := context.Background()
	if *start {
		if err := api.StartScreen(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start screen sentinel")
		}
	}

	var forwarded, captured, malformed int

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var frame models.Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			malformed++
			log.Debug().Err(err).Msg("Skipping malformed frame")
			continue
		}

		ack, err := api.PushFrame(ctx, frame)
		if err != nil {
			log.Warn().Err(err).Str("app", frame.AppName).Msg("Frame rejected")
			continue
		}
		forwarded++
		if ack.Captured {
			captured++
		}
		log.Debug().
			Str("app", frame.AppName).
			Bool("captured", ack.Captured).
			Msg("Frame forwarded")
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Reading stdin failed")
	}

	log.Info().
		Int("forwarded", forwarded).
		Int("captured", captured).
		Int("malformed", malformed).
		Msg("Screen shell done")
}
