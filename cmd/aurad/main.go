// Package main provides the aura daemon entry point.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/internal/config"
	"github.com/thebtf/aura/internal/worker"
)

// Version is stamped at release time through ldflags.
var Version = "dev"

func main() {
	dataDir := flag.String("data-dir", "", "Data directory (default: ~/.aura)")
	debug := flag.Bool("debug", false, "Log at debug level")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if *dataDir != "" {
		os.Setenv("AURA_DATA_DIR", *dataDir)
	}

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load settings, using defaults")
		cfg = config.Default()
	}

	level := zerolog.InfoLevel
	if parsed, perr := zerolog.ParseLevel(cfg.LogLevel); perr == nil && cfg.LogLevel != "" {
		level = parsed
	}
	if *debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	svc, err := worker.New(Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize service")
	}
	defer svc.Close()

	// Stop cleanly on SIGINT or SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		svc.Stop()
	}()

	log.Info().Str("version", Version).Str("dataDir", config.DataDir()).Msg("Starting aura daemon")
	if err := svc.Start(); err != nil {
		log.Fatal().Err(err).Msg("Daemon error")
	}
}
