package worker

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/internal/config"
	gormdb "github.com/thebtf/aura/internal/db/gorm"
	"github.com/thebtf/aura/internal/search"
	"github.com/thebtf/aura/pkg/models"
)

// setupRoutes mounts every endpoint on the service router. Health probes and
// the event stream stay outside the readiness gate so clients can watch the
// daemon come up.
func (s *Service) setupRoutes() {
	s.router.Get("/", serveIndex)
	s.router.Get("/dashboard", serveIndex)
	s.router.Get("/assets/*", serveAssets)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/ready", s.handleReady)
	s.router.Get("/api/version", s.handleVersion)
	s.router.Get("/api/events", s.sseBroadcaster.HandleSSE)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		r.Post("/api/command/execute", s.handleCommandExecute)
		r.Post("/api/command/confirm", s.handleCommandConfirm)
		r.Get("/api/command/suggestions", s.handleCommandSuggestions)
		r.Get("/api/command/history", s.handleCommandHistory)

		r.Post("/api/perception/screen/start", s.handleScreenStart)
		r.Post("/api/perception/screen/stop", s.handleScreenStop)
		r.Post("/api/perception/screen/frames", s.handleScreenFrame)
		r.Get("/api/perception/screen/snapshots", s.handleScreenSnapshots)

		r.Post("/api/perception/audio/start", s.handleAudioStart)
		r.Post("/api/perception/audio/stop", s.handleAudioStop)
		r.Post("/api/perception/audio/chunks", s.handleAudioChunk)
		r.Get("/api/perception/audio/sessions", s.handleAudioSessions)

		r.Post("/api/context/start", s.handleContextStart)
		r.Post("/api/context/stop", s.handleContextStop)
		r.Post("/api/context/patterns", s.handleAddPattern)
		r.Get("/api/context/patterns", s.handleListPatterns)
		r.Post("/api/context/quiet-hours", s.handleQuietHours)
		r.Get("/api/context/snapshots", s.handleContextSnapshots)
		r.Get("/api/context/triggers", s.handleContextTriggers)

		r.Post("/api/filters/screen", s.handleAddScreenFilter)
		r.Get("/api/filters/screen", s.handleListScreenFilters)
		r.Post("/api/filters/audio", s.handleAddAudioFilter)
		r.Get("/api/filters/audio", s.handleListAudioFilters)

		r.Get("/api/search", s.handleSearch)
		r.Get("/api/status", s.handleStatus)
	})
}

// requireReady rejects API calls until startup finishes.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "service is starting")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": s.version,
	})
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	quietStart, quietEnd := s.engine.QuietHours()
	writeJSON(w, http.StatusOK, map[string]any{
		"version":            s.version,
		"uptime_seconds":     int64(time.Since(s.startTime).Seconds()),
		"screen_running":     s.screenSentinel.Running(),
		"audio_running":      s.audioSentinel.Running(),
		"audio_state":        s.audioSentinel.State(),
		"context_running":    s.engine.Running(),
		"dispatcher_running": s.dispatcher.Running(),
		"patterns":           len(s.engine.Patterns()),
		"quiet_hours_start":  quietStart,
		"quiet_hours_end":    quietEnd,
		"sse_clients":        s.sseBroadcaster.ClientCount(),
	})
}

type executeRequest struct {
	Command string `json:"command"`
	Context string `json:"context,omitempty"`
}

func (s *Service) handleCommandExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	contextText := req.Context
	if contextText == "" {
		contextText = s.commandContext(r.Context())
	}

	result := s.executor.Execute(r.Context(), req.Command, contextText)
	s.sseBroadcaster.Broadcast(models.Event{Type: models.EventCommandResult, Data: result, At: time.Now()})
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleCommandConfirm(w http.ResponseWriter, r *http.Request) {
	var req models.ConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Context == "" {
		req.Context = s.commandContext(r.Context())
	}

	result := s.executor.Confirm(r.Context(), &req)
	s.sseBroadcaster.Broadcast(models.Event{Type: models.EventCommandResult, Data: result, At: time.Now()})
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleCommandSuggestions(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")
	limit := gormdb.ParseLimitParam(r, 5)

	suggestions := s.suggester.Suggest(r.Context(), prefix, limit)
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Service) handleCommandHistory(w http.ResponseWriter, r *http.Request) {
	limit := gormdb.ParseLimitParam(r, 20)

	entries, err := s.historyStore.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load command history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if entries == nil {
		entries = []models.CommandHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Service) handleScreenStart(w http.ResponseWriter, _ *http.Request) {
	s.screenSentinel.Start()
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Service) handleScreenStop(w http.ResponseWriter, _ *http.Request) {
	s.screenSentinel.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleScreenFrame ingests one foreground-window frame from a platform
// shell. The frame becomes the sentinel's current view; when the sentinel is
// running it samples immediately instead of waiting out the tick, and the
// content hash still suppresses duplicates.
func (s *Service) handleScreenFrame(w http.ResponseWriter, r *http.Request) {
	var frame models.Frame
	if !decodeJSON(w, r, &frame) {
		return
	}
	if frame.AppName == "" {
		writeError(w, http.StatusBadRequest, "app_name is required")
		return
	}
	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = time.Now()
	}

	s.screenSource.Push(frame)

	captured := false
	if s.screenSentinel.Running() {
		captured = s.screenSentinel.Sample(r.Context()) != nil
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "captured": captured})
}

func (s *Service) handleScreenSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := gormdb.ParseLimitParam(r, 20)

	snapshots, err := s.screenStore.RecentSnapshots(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load screen snapshots")
		writeError(w, http.StatusInternalServerError, "failed to load snapshots")
		return
	}
	if snapshots == nil {
		snapshots = []models.ScreenSnapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Service) handleAudioStart(w http.ResponseWriter, _ *http.Request) {
	s.audioSentinel.Start()
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Service) handleAudioStop(w http.ResponseWriter, _ *http.Request) {
	s.audioSentinel.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleAudioChunk ingests one transcribed (or raw) audio chunk. Accepted is
// false when audio perception is stopped or the queue is full; shells just
// keep streaming either way.
func (s *Service) handleAudioChunk(w http.ResponseWriter, r *http.Request) {
	var chunk models.Chunk
	if !decodeJSON(w, r, &chunk) {
		return
	}
	if chunk.SourceName == "" {
		writeError(w, http.StatusBadRequest, "source_name is required")
		return
	}
	if chunk.At.IsZero() {
		chunk.At = time.Now()
	}

	accepted := s.audioSentinel.Push(chunk)
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": accepted})
}

func (s *Service) handleAudioSessions(w http.ResponseWriter, r *http.Request) {
	limit := gormdb.ParseLimitParam(r, 20)

	sessions, err := s.audioStore.RecentSessions(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load audio sessions")
		writeError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}
	if sessions == nil {
		sessions = []models.AudioSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Service) handleContextStart(w http.ResponseWriter, _ *http.Request) {
	s.engine.Start()
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Service) handleContextStop(w http.ResponseWriter, _ *http.Request) {
	s.engine.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Service) handleAddPattern(w http.ResponseWriter, r *http.Request) {
	var pattern models.ContextPattern
	if !decodeJSON(w, r, &pattern) {
		return
	}
	if err := s.engine.AddPattern(pattern); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ruleStore.UpsertPattern(r.Context(), &pattern); err != nil {
		log.Error().Err(err).Str("pattern", pattern.PatternName).Msg("Failed to persist pattern")
		writeError(w, http.StatusInternalServerError, "failed to persist pattern")
		return
	}
	writeJSON(w, http.StatusOK, pattern)
}

func (s *Service) handleListPatterns(w http.ResponseWriter, _ *http.Request) {
	patterns := s.engine.Patterns()
	if patterns == nil {
		patterns = []models.ContextPattern{}
	}
	writeJSON(w, http.StatusOK, patterns)
}

type quietHoursRequest struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

func (s *Service) handleQuietHours(w http.ResponseWriter, r *http.Request) {
	var req quietHoursRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.engine.SetQuietHours(req.StartHour, req.EndHour); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.config.QuietHoursStart = req.StartHour
	s.config.QuietHoursEnd = req.EndHour
	if err := config.Save(s.config); err != nil {
		log.Warn().Err(err).Msg("Failed to persist quiet hours")
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"start_hour": req.StartHour,
		"end_hour":   req.EndHour,
	})
}

func (s *Service) handleContextSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := gormdb.ParseLimitParam(r, 20)

	snapshots, err := s.contextStore.RecentSnapshots(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load context snapshots")
		writeError(w, http.StatusInternalServerError, "failed to load snapshots")
		return
	}
	if snapshots == nil {
		snapshots = []models.ContextSnapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Service) handleContextTriggers(w http.ResponseWriter, r *http.Request) {
	limit := gormdb.ParseLimitParam(r, 20)

	triggers, err := s.contextStore.RecentTriggers(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load triggers")
		writeError(w, http.StatusInternalServerError, "failed to load triggers")
		return
	}
	if triggers == nil {
		triggers = []models.Trigger{}
	}
	writeJSON(w, http.StatusOK, triggers)
}

func (s *Service) handleAddScreenFilter(w http.ResponseWriter, r *http.Request) {
	var f models.AppFilter
	if !decodeJSON(w, r, &f) {
		return
	}
	if err := s.filters.AddAppFilter(f); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ruleStore.UpsertAppFilter(r.Context(), &f); err != nil {
		log.Error().Err(err).Str("app", f.AppName).Msg("Failed to persist app filter")
		writeError(w, http.StatusInternalServerError, "failed to persist filter")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Service) handleListScreenFilters(w http.ResponseWriter, _ *http.Request) {
	filters := s.filters.AppFilters()
	if filters == nil {
		filters = []models.AppFilter{}
	}
	writeJSON(w, http.StatusOK, filters)
}

func (s *Service) handleAddAudioFilter(w http.ResponseWriter, r *http.Request) {
	var f models.AudioFilter
	if !decodeJSON(w, r, &f) {
		return
	}
	if err := s.filters.AddAudioFilter(f); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ruleStore.UpsertAudioFilter(r.Context(), &f); err != nil {
		log.Error().Err(err).Str("source", f.SourceName).Msg("Failed to persist audio filter")
		writeError(w, http.StatusInternalServerError, "failed to persist filter")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Service) handleListAudioFilters(w http.ResponseWriter, _ *http.Request) {
	filters := s.filters.AudioFilters()
	if filters == nil {
		filters = []models.AudioFilter{}
	}
	writeJSON(w, http.StatusOK, filters)
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := search.Params{
		Query: r.URL.Query().Get("q"),
		Kind:  r.URL.Query().Get("kind"),
		Limit: gormdb.ParseLimitParam(r, 20),
	}

	result, err := s.searchMgr.Recall(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Str("query", params.Query).Msg("Recall failed")
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
