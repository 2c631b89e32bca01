// Package worker provides the aura daemon: perception sentinels, the context
// engine, command routing, and the HTTP/SSE surface that ties them together.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/thebtf/aura/internal/actions"
	"github.com/thebtf/aura/internal/audio"
	"github.com/thebtf/aura/internal/budget"
	"github.com/thebtf/aura/internal/capability"
	"github.com/thebtf/aura/internal/command"
	"github.com/thebtf/aura/internal/config"
	gormdb "github.com/thebtf/aura/internal/db/gorm"
	"github.com/thebtf/aura/internal/db/sqlite"
	"github.com/thebtf/aura/internal/engine"
	"github.com/thebtf/aura/internal/fallback"
	"github.com/thebtf/aura/internal/filter"
	"github.com/thebtf/aura/internal/rules"
	"github.com/thebtf/aura/internal/screen"
	"github.com/thebtf/aura/internal/search"
	"github.com/thebtf/aura/internal/trigger"
	"github.com/thebtf/aura/internal/watcher"
	"github.com/thebtf/aura/internal/worker/sse"
	"github.com/thebtf/aura/pkg/models"
)

// storeTimeout bounds a single persistence call made from a perception sink.
const storeTimeout = 5 * time.Second

// shutdownGrace is how long in-flight HTTP requests get to finish.
const shutdownGrace = 5 * time.Second

// Service is the long-running daemon. It owns the stores, the perception
// sentinels, the context engine, the trigger dispatcher, and the HTTP server.
type Service struct {
	version string
	config  *config.Config

	store        *gormdb.Store
	rawStore     *sqlite.Store
	ruleStore    *gormdb.RuleStore
	screenStore  *sqlite.ScreenStore
	audioStore   *sqlite.AudioStore
	contextStore *sqlite.ContextStore
	historyStore *sqlite.HistoryStore

	filters        *filter.Store
	engine         *engine.Engine
	screenSource   *screen.PushSource
	screenSentinel *screen.Sentinel
	audioSentinel  *audio.Sentinel
	dispatcher     *trigger.Dispatcher
	redisSink      *trigger.RedisSink
	executor       *command.Executor
	suggester      *command.Suggester
	pending        *command.PendingManager
	searchMgr      *search.Manager
	sseBroadcaster *sse.Broadcaster

	router     *chi.Mux
	httpServer *http.Server
	watchers   []*watcher.Watcher

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	ready     atomic.Bool
}

// New assembles a Service from the current configuration. The database is
// opened (and migrated) here; nothing starts running until Start.
func New(version string) (*Service, error) {
	cfg := config.Get()

	store, err := gormdb.NewStore(gormdb.Config{
		Path:     config.DBPath(),
		MaxConns: cfg.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	rawStore := sqlite.NewStore(store.GetRawDB())

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:        version,
		config:         cfg,
		store:          store,
		rawStore:       rawStore,
		ruleStore:      gormdb.NewRuleStore(store),
		screenStore:    sqlite.NewScreenStore(rawStore, cfg.MaxSnapshots),
		audioStore:     sqlite.NewAudioStore(rawStore, cfg.MaxSnapshots),
		contextStore:   sqlite.NewContextStore(rawStore, cfg.MaxSnapshots),
		historyStore:   sqlite.NewHistoryStore(rawStore),
		filters:        filter.NewStore(),
		screenSource:   screen.NewPushSource(),
		sseBroadcaster: sse.NewBroadcaster(),
		router:         chi.NewRouter(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}

	svc.engine = engine.New(svc.sinkContextSnapshot)

	svc.screenSentinel = screen.NewSentinel(
		svc.screenSource,
		capability.NewExtractor(cfg),
		svc.filters,
		cfg.ScreenSampleInterval(),
		svc.sinkScreenSnapshot,
	)
	svc.audioSentinel = audio.NewSentinel(
		capability.NewTranscriber(cfg),
		svc.filters,
		audio.Config{
			SilenceTimeout:   cfg.AudioSilenceTimeout(),
			MinUtterance:     cfg.MinUtterance(),
			DefaultThreshold: cfg.VolumeThreshold,
		},
		svc.sinkAudioSession,
	)

	counter, err := budget.NewCounter()
	if err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("init token counter: %w", err)
	}

	svc.pending = command.NewPendingManager(cfg.ConfirmTTL())
	router := command.NewRouter(capability.NewClarifier(cfg), svc.pending, counter, cfg.ClarifierTokenBudget)
	registry := actions.NewRegistry()
	resolver := fallback.NewResolver()
	svc.executor = command.NewExecutor(router, registry, resolver, svc.historyStore, svc.sinkIntent)
	svc.suggester = command.NewSuggester(svc.historyStore)

	svc.searchMgr = search.NewManager(svc.screenStore, svc.audioStore, svc.contextStore, svc.historyStore)

	// Trigger fan-out. The command sink gets its own executor without the
	// intent sink: an action fired by a pattern must not fuse a new intent
	// into the engine, or matching patterns would re-fire off their own
	// executions.
	triggerExecutor := command.NewExecutor(router, registry, resolver, svc.historyStore, nil)
	sinks := []trigger.Sink{
		trigger.NewStoreSink(svc.contextStore),
		trigger.NewEventSink(svc.sseBroadcaster),
		trigger.NewCommandSink(triggerExecutor),
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, trigger.NewWebhookSink(cfg.WebhookURL))
	}
	if cfg.RedisAddr != "" {
		svc.redisSink = trigger.NewRedisSink(cfg.RedisAddr)
		sinks = append(sinks, svc.redisSink)
	}
	svc.dispatcher = trigger.NewDispatcher(svc.engine.Triggers(), sinks...)

	svc.setupRoutes()

	return svc, nil
}

// Start brings the service online and blocks until Stop is called or the
// HTTP server fails. Perception starts automatically unless the config asks
// for ultra-lightweight mode, where only the command path runs.
func (s *Service) Start() error {
	port := config.GetPort()

	s.loadRules()

	s.engine.Start()
	s.dispatcher.Start()
	if s.config.UltraLightweight {
		log.Info().Msg("Ultra-lightweight mode: perception sentinels stay off")
	} else {
		s.screenSentinel.Start()
		s.audioSentinel.Start()
	}
	s.startWatchers()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		log.Info().Int("port", port).Str("version", s.version).Msg("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	s.ready.Store(true)
	log.Info().Msg("Service ready")

	err := g.Wait()
	s.ready.Store(false)
	s.stopComponents()
	return err
}

// Stop asks a running Start to unwind. Safe to call more than once.
func (s *Service) Stop() {
	s.cancel()
}

// Close releases everything New opened. Call after Start returns.
func (s *Service) Close() error {
	s.cancel()
	s.pending.Shutdown()
	if s.redisSink != nil {
		if err := s.redisSink.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis pool")
		}
	}
	return s.store.Close()
}

// stopComponents shuts the pipeline down back to front: sentinels first so
// no new signals arrive, engine next, dispatcher last so queued triggers
// still drain to their sinks.
func (s *Service) stopComponents() {
	for _, w := range s.watchers {
		if err := w.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop watcher")
		}
	}
	s.watchers = nil

	s.audioSentinel.Stop()
	s.screenSentinel.Stop()
	s.engine.Stop()
	s.dispatcher.Stop()
}

// loadRules installs persisted filters and patterns into the live stores.
// Database rows load first, then rules.yaml, so file entries win on a name
// collision. Invalid entries are skipped with a warning, never fatal.
func (s *Service) loadRules() {
	ctx, cancel := context.WithTimeout(s.ctx, storeTimeout)
	defer cancel()

	s.filters.Reset()
	s.engine.ResetPatterns()

	if appFilters, err := s.ruleStore.ListAppFilters(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load app filters from database")
	} else {
		for _, f := range appFilters {
			if err := s.filters.AddAppFilter(f); err != nil {
				log.Warn().Err(err).Str("app", f.AppName).Msg("Skipping stored app filter")
			}
		}
	}

	if audioFilters, err := s.ruleStore.ListAudioFilters(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load audio filters from database")
	} else {
		for _, f := range audioFilters {
			if err := s.filters.AddAudioFilter(f); err != nil {
				log.Warn().Err(err).Str("source", f.SourceName).Msg("Skipping stored audio filter")
			}
		}
	}

	if patterns, err := s.ruleStore.ListPatterns(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load patterns from database")
	} else {
		for _, p := range patterns {
			if err := s.engine.AddPattern(p); err != nil {
				log.Warn().Err(err).Str("pattern", p.PatternName).Msg("Skipping stored pattern")
			}
		}
	}

	s.loadRulesFile()

	if err := s.engine.SetQuietHours(s.config.QuietHoursStart, s.config.QuietHoursEnd); err != nil {
		log.Warn().Err(err).Msg("Ignoring configured quiet hours")
	}
}

// loadRulesFile merges rules.yaml on top of whatever is already installed.
func (s *Service) loadRulesFile() {
	path := config.RulesPath()
	file, err := rules.Load(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to load rules file")
		return
	}
	if file.Empty() {
		return
	}

	clean, errs := file.Validate()
	for _, verr := range errs {
		log.Warn().Err(verr).Str("path", path).Msg("Skipping invalid rule")
	}

	for _, f := range clean.AppFilters {
		if err := s.filters.AddAppFilter(f); err != nil {
			log.Warn().Err(err).Str("app", f.AppName).Msg("Skipping app filter from rules file")
		}
	}
	for _, f := range clean.AudioFilters {
		if err := s.filters.AddAudioFilter(f); err != nil {
			log.Warn().Err(err).Str("source", f.SourceName).Msg("Skipping audio filter from rules file")
		}
	}
	for _, p := range clean.Patterns {
		if err := s.engine.AddPattern(p); err != nil {
			log.Warn().Err(err).Str("pattern", p.PatternName).Msg("Skipping pattern from rules file")
		}
	}

	log.Info().Str("path", path).
		Int("patterns", len(clean.Patterns)).
		Int("appFilters", len(clean.AppFilters)).
		Int("audioFilters", len(clean.AudioFilters)).
		Msg("Rules file loaded")
}

// startWatchers reloads settings and rules when their files change on disk.
func (s *Service) startWatchers() {
	settingsPath := config.SettingsPath()
	settingsWatcher, err := watcher.New(settingsPath, s.onSettingsChange, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
	} else if err := settingsWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
	} else {
		s.watchers = append(s.watchers, settingsWatcher)
		log.Info().Str("path", settingsPath).Msg("Settings watcher started")
	}

	rulesPath := config.RulesPath()
	rulesWatcher, err := watcher.New(rulesPath, s.onRulesChange, s.onRulesChange)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create rules watcher")
	} else if err := rulesWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start rules watcher")
	} else {
		s.watchers = append(s.watchers, rulesWatcher)
		log.Info().Str("path", rulesPath).Msg("Rules watcher started")
	}
}

// onSettingsChange applies what can change without a restart: quiet hours
// and log level. Sample intervals and the port keep their boot values until
// the daemon restarts.
func (s *Service) onSettingsChange() {
	cfg := config.Reload()
	s.config = cfg

	if err := s.engine.SetQuietHours(cfg.QuietHoursStart, cfg.QuietHoursEnd); err != nil {
		log.Warn().Err(err).Msg("Ignoring reloaded quiet hours")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().Msg("Settings reloaded")
	s.sseBroadcaster.Broadcast(models.Event{Type: models.EventConfigUpdated, At: time.Now()})
}

// onRulesChange reinstalls the full rule set. Also fires when rules.yaml is
// deleted, which leaves only database rules active.
func (s *Service) onRulesChange() {
	s.loadRules()
	s.sseBroadcaster.Broadcast(models.Event{Type: models.EventConfigUpdated, At: time.Now()})
}

// sinkScreenSnapshot persists an emitted snapshot, announces it, and feeds
// it into the context engine. Runs on the sampling goroutine.
func (s *Service) sinkScreenSnapshot(snap *models.ScreenSnapshot) {
	ctx, cancel := context.WithTimeout(s.ctx, storeTimeout)
	defer cancel()

	id, err := s.screenStore.InsertSnapshot(ctx, snap)
	if err != nil {
		log.Error().Err(err).Str("app", snap.AppName).Msg("Failed to persist screen snapshot")
	} else {
		snap.ID = id
	}

	s.sseBroadcaster.Broadcast(models.Event{Type: models.EventScreenSnapshot, Data: snap, At: time.Now()})
	s.engine.ProcessScreen(snap)
}

// sinkAudioSession persists a sealed session, announces it, and feeds it
// into the context engine. Runs on the audio processing goroutine.
func (s *Service) sinkAudioSession(session *models.AudioSession) {
	ctx, cancel := context.WithTimeout(s.ctx, storeTimeout)
	defer cancel()

	id, err := s.audioStore.InsertSession(ctx, session)
	if err != nil {
		log.Error().Err(err).Str("source", session.SourceName).Msg("Failed to persist audio session")
	} else {
		session.ID = id
	}

	s.sseBroadcaster.Broadcast(models.Event{Type: models.EventAudioSession, Data: session, At: time.Now()})
	s.engine.ProcessAudio(session)
}

// sinkContextSnapshot records every fused snapshot the engine produces,
// including those taken during quiet hours.
func (s *Service) sinkContextSnapshot(snap *models.ContextSnapshot) {
	ctx, cancel := context.WithTimeout(s.ctx, storeTimeout)
	defer cancel()

	id, err := s.contextStore.InsertSnapshot(ctx, snap)
	if err != nil {
		log.Error().Err(err).Str("app", snap.AppName).Msg("Failed to persist context snapshot")
	} else {
		snap.ID = id
	}

	s.sseBroadcaster.Broadcast(models.Event{Type: models.EventContextSnapshot, Data: snap, At: time.Now()})
}

// sinkIntent fuses each successfully routed command into the engine so
// patterns can react to what the user just asked for.
func (s *Service) sinkIntent(intent *models.Intent) {
	s.engine.ProcessIntent(intent)
}
