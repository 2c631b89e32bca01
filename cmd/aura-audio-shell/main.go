// Package main provides the audio ingest shell. A platform capture process
// pipes NDJSON level/transcription chunks into it; each line is forwarded to
// the daemon's audio sentinel.
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
	source := flag.String("source", "mic", "Source name for chunks that carry none")
	start := flag.Bool("start", true, "Start the audio sentinel before forwarding")
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
		if err := api.StartAudio(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start audio sentinel")
		}
	}

	var forwarded, dropped, malformed int

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk models.Chunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			malformed++
			log.Debug().Err(err).Msg("Skipping malformed chunk")
			continue
		}
		if chunk.SourceName == "" {
			chunk.SourceName = *source
		}

		ack, err := api.PushChunk(ctx, chunk)
		if err != nil {
			log.Warn().Err(err).Str("source", chunk.SourceName).Msg("Chunk rejected")
			continue
		}
		if ack.Accepted {
			forwarded++
		} else {
			dropped++
		}
		log.Debug().
			Str("source", chunk.SourceName).
			Float64("volume", chunk.Volume).
			Bool("accepted", ack.Accepted).
			Msg("Chunk forwarded")
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Reading stdin failed")
	}

	log.Info().
		Int("forwarded", forwarded).
		Int("dropped", dropped).
		Int("malformed", malformed).
		Msg("Audio shell done")
}
