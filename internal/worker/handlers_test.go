//go:build fts5

package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	"github.com/thebtf/aura/internal/screen"
	"github.com/thebtf/aura/internal/search"
	"github.com/thebtf/aura/internal/trigger"
	"github.com/thebtf/aura/internal/worker/sse"
	"github.com/thebtf/aura/pkg/models"
)

// testService builds a full Service against a temp database (migrations
// included). The context engine runs so perception feeds fusion; sentinels
// and the dispatcher stay stopped until a test starts them.
func testService(t *testing.T) (*Service, func()) {
	t.Helper()

	t.Setenv("AURA_DATA_DIR", t.TempDir())

	store, err := gormdb.NewStore(gormdb.Config{
		Path:     filepath.Join(t.TempDir(), "aura.db"),
		MaxConns: 4,
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)

	rawStore := sqlite.NewStore(store.GetRawDB())
	cfg := config.Default()

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:        "test-version",
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
	require.NoError(t, err)
	svc.pending = command.NewPendingManager(cfg.ConfirmTTL())
	cmdRouter := command.NewRouter(capability.NewClarifier(cfg), svc.pending, counter, cfg.ClarifierTokenBudget)
	svc.executor = command.NewExecutor(cmdRouter, actions.NewRegistry(), fallback.NewResolver(), svc.historyStore, svc.sinkIntent)
	svc.suggester = command.NewSuggester(svc.historyStore)
	svc.searchMgr = search.NewManager(svc.screenStore, svc.audioStore, svc.contextStore, svc.historyStore)
	svc.dispatcher = trigger.NewDispatcher(svc.engine.Triggers(),
		trigger.NewStoreSink(svc.contextStore),
		trigger.NewEventSink(svc.sseBroadcaster),
	)

	svc.setupRoutes()
	svc.engine.Start()
	svc.ready.Store(true)

	cleanup := func() {
		svc.audioSentinel.Stop()
		svc.screenSentinel.Stop()
		svc.engine.Stop()
		svc.dispatcher.Stop()
		svc.pending.Shutdown()
		cancel()
		store.Close()
	}

	return svc, cleanup
}

// postJSON sends a JSON POST through the full router.
func postJSON(t *testing.T, svc *Service, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	return rec
}

// getPath sends a GET through the full router.
func getPath(t *testing.T, svc *Service, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth_ReturnsVersion(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	svc.version = "test-version-1.2.3"
	svc.ready.Store(true)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	svc.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "ready", response["status"])
	assert.Equal(t, "test-version-1.2.3", response["version"])
}

func TestHandleVersion(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	svc.version = "v2.0.0-beta"

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()

	svc.handleVersion(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]string
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "v2.0.0-beta", response["version"])
}

func TestHandleReady_ServiceNotReady(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	svc.ready.Store(false)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rec := httptest.NewRecorder()

	svc.handleReady(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleReady_ServiceReady(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	svc.ready.Store(true)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rec := httptest.NewRecorder()

	svc.handleReady(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]string
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "ready", response["status"])
}

func TestRequireReadyMiddleware_Blocks(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	svc.ready.Store(false)

	rec := postJSON(t, svc, "/api/command/execute", executeRequest{Command: "open chrome"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireReadyMiddleware_Allows(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	svc.ready.Store(true)

	handler := svc.requireReady(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())
}

func TestHandleCommandExecute_NoteCommand(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/command/execute", executeRequest{Command: "take a note buy oat milk"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.CommandResult
	err := json.Unmarshal(rec.Body.Bytes(), &result)
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.NotNil(t, result.Intent)
	assert.Equal(t, "take_note", result.Intent.FunctionName)
	assert.Equal(t, 1.0, result.Intent.Confidence)
	assert.Contains(t, result.Result, "buy oat milk")

	// The executed command lands in history.
	rec = getPath(t, svc, "/api/command/history")
	assert.Equal(t, http.StatusOK, rec.Code)

	var entries []models.CommandHistoryEntry
	err = json.Unmarshal(rec.Body.Bytes(), &entries)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "take a note buy oat milk", entries[0].Command)
	assert.True(t, entries[0].Success)
}

func TestHandleCommandExecute_FeedsIntentIntoEngine(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/command/execute", executeRequest{Command: "remind me to stretch"})
	assert.Equal(t, http.StatusOK, rec.Code)

	current := svc.engine.Current()
	require.NotNil(t, current)
	require.NotNil(t, current.UserIntent)
	assert.Equal(t, "remind me to stretch", current.UserIntent.RawCommand)
}

func TestHandleCommandExecute_BadRequests(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/command/execute", executeRequest{Command: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/command/execute", bytes.NewReader([]byte("{not json")))
	raw := httptest.NewRecorder()
	svc.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestHandleCommandConfirm_UnknownRequest(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/command/confirm", models.ConfirmRequest{
		Confirmation:    true,
		Clarification:   &models.Clarification{RequestID: "no-such-request"},
		OriginalCommand: "do the thing",
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.ConfirmResult
	err := json.Unmarshal(rec.Body.Bytes(), &result)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.Executed)
	require.NotEmpty(t, result.Results)
	assert.Contains(t, result.Results[0], "expired or unknown")
}

func TestHandleCommandSuggestions(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		rec := postJSON(t, svc, "/api/command/execute", executeRequest{Command: "remind me to stretch"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := getPath(t, svc, "/api/command/suggestions?q=remind")
	assert.Equal(t, http.StatusOK, rec.Code)

	var suggestions []string
	err := json.Unmarshal(rec.Body.Bytes(), &suggestions)
	require.NoError(t, err)

	require.NotEmpty(t, suggestions)
	assert.Contains(t, suggestions[0], "remind")
}

func TestHandleCommandHistory_Limit(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	commands := []string{
		"take a note water the plants",
		"remind me to stretch",
		"take a note standup moved",
	}
	for _, cmd := range commands {
		rec := postJSON(t, svc, "/api/command/execute", executeRequest{Command: cmd})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := getPath(t, svc, "/api/command/history?limit=2")
	assert.Equal(t, http.StatusOK, rec.Code)

	var entries []models.CommandHistoryEntry
	err := json.Unmarshal(rec.Body.Bytes(), &entries)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestHandleScreenFrame_IngestAndDedupe(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/perception/screen/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.screenSentinel.Running())

	frame := models.Frame{AppName: "Slack", WindowTitle: "#incidents", Text: "deploy failed on api-7"}

	rec = postJSON(t, svc, "/api/perception/screen/frames", frame)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var ack map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, true, ack["accepted"])
	assert.Equal(t, true, ack["captured"])

	// Same content again: accepted but suppressed by the content hash.
	rec = postJSON(t, svc, "/api/perception/screen/frames", frame)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, true, ack["accepted"])
	assert.Equal(t, false, ack["captured"])

	rec = getPath(t, svc, "/api/perception/screen/snapshots")
	assert.Equal(t, http.StatusOK, rec.Code)

	var snapshots []models.ScreenSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	require.Len(t, snapshots, 1)
	assert.Equal(t, "Slack", snapshots[0].AppName)
	assert.Contains(t, snapshots[0].ExtractedText, "deploy failed")

	rec = postJSON(t, svc, "/api/perception/screen/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.screenSentinel.Running())
}

func TestHandleScreenFrame_BufferedWhileStopped(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/perception/screen/frames", models.Frame{AppName: "Notes", Text: "draft"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var ack map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, true, ack["accepted"])
	assert.Equal(t, false, ack["captured"])

	rec = getPath(t, svc, "/api/perception/screen/snapshots")
	var snapshots []models.ScreenSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	assert.Empty(t, snapshots)
}

func TestHandleScreenFrame_RequiresAppName(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/perception/screen/frames", models.Frame{Text: "orphan frame"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScreenFrame_BlacklistSuppressesCapture(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/filters/screen", models.AppFilter{AppName: "1Password", IsBlacklisted: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, svc, "/api/perception/screen/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, svc, "/api/perception/screen/frames", models.Frame{AppName: "1Password", Text: "vault entry"})
	var ack map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, false, ack["captured"])

	rec = getPath(t, svc, "/api/perception/screen/snapshots")
	var snapshots []models.ScreenSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	assert.Empty(t, snapshots)
}

func TestHandleAudioChunk_RejectedWhileStopped(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/perception/audio/chunks", models.Chunk{SourceName: "mic", Volume: 0.9, Text: "hello"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var ack map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, false, ack["accepted"])
}

func TestHandleAudioChunk_SealedSessionListed(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/perception/audio/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Two voiced chunks a second apart, already past the silence timeout, so
	// the sentinel's own silence ticker seals the session.
	base := time.Now()
	chunks := []models.Chunk{
		{SourceName: "mic", Volume: 0.9, Text: "standup moved to", At: base.Add(-4 * time.Second)},
		{SourceName: "mic", Volume: 0.9, Text: "eleven tomorrow", At: base.Add(-3 * time.Second)},
	}
	for _, chunk := range chunks {
		rec = postJSON(t, svc, "/api/perception/audio/chunks", chunk)
		assert.Equal(t, http.StatusAccepted, rec.Code)

		var ack map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
		assert.Equal(t, true, ack["accepted"])
	}

	assert.Eventually(t, func() bool {
		res := getPath(t, svc, "/api/perception/audio/sessions")
		if res.Code != http.StatusOK {
			return false
		}
		var sessions []models.AudioSession
		if err := json.Unmarshal(res.Body.Bytes(), &sessions); err != nil {
			return false
		}
		return len(sessions) == 1 && sessions[0].Transcript == "standup moved to eleven tomorrow"
	}, 5*time.Second, 50*time.Millisecond)

	rec = postJSON(t, svc, "/api/perception/audio/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleContextPatterns_RoundTrip(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	pattern := models.ContextPattern{
		PatternName:    "incident-watch",
		AppName:        "Slack",
		ScreenKeywords: []string{"deploy failed"},
		TriggerActions: []string{"take a note incident started"},
		IsActive:       true,
	}

	rec := postJSON(t, svc, "/api/context/patterns", pattern)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = getPath(t, svc, "/api/context/patterns")
	assert.Equal(t, http.StatusOK, rec.Code)

	var patterns []models.ContextPattern
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patterns))
	require.Len(t, patterns, 1)
	assert.Equal(t, pattern.PatternName, patterns[0].PatternName)
	assert.Equal(t, pattern.AppName, patterns[0].AppName)
	assert.Equal(t, pattern.ScreenKeywords, patterns[0].ScreenKeywords)
	assert.Equal(t, pattern.TriggerActions, patterns[0].TriggerActions)
	assert.True(t, patterns[0].IsActive)

	// Patterns survive a restart via the rule store.
	stored, err := svc.ruleStore.GetPattern(context.Background(), "incident-watch")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, pattern.TriggerActions, stored.TriggerActions)
}

func TestHandleAddPattern_Invalid(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/context/patterns", models.ContextPattern{AppName: "Slack"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQuietHours(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/context/quiet-hours", quietHoursRequest{StartHour: 22, EndHour: 7})
	assert.Equal(t, http.StatusOK, rec.Code)

	start, end := svc.engine.QuietHours()
	assert.Equal(t, 22, start)
	assert.Equal(t, 7, end)
	assert.Equal(t, 22, svc.config.QuietHoursStart)
	assert.Equal(t, 7, svc.config.QuietHoursEnd)

	rec = postJSON(t, svc, "/api/context/quiet-hours", quietHoursRequest{StartHour: 25, EndHour: 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleContextStartStop(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/context/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.engine.Running())

	// With the engine stopped, ingested frames still become screen snapshots
	// but no fused context snapshot is recorded.
	rec = postJSON(t, svc, "/api/perception/screen/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postJSON(t, svc, "/api/perception/screen/frames", models.Frame{AppName: "Slack", Text: "quiet period"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = getPath(t, svc, "/api/context/snapshots")
	var snapshots []models.ContextSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	assert.Empty(t, snapshots)

	rec = postJSON(t, svc, "/api/context/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.engine.Running())
}

func TestHandleContextSnapshots_AfterIngest(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/perception/screen/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, svc, "/api/perception/screen/frames", models.Frame{AppName: "Zoom", WindowTitle: "Weekly sync", Text: "agenda: roadmap"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = getPath(t, svc, "/api/context/snapshots")
	assert.Equal(t, http.StatusOK, rec.Code)

	var snapshots []models.ContextSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	require.Len(t, snapshots, 1)
	assert.Equal(t, "Zoom", snapshots[0].AppName)
	require.NotNil(t, snapshots[0].ScreenSnapshot)
	assert.Contains(t, snapshots[0].ScreenSnapshot.ExtractedText, "roadmap")
}

func TestTriggerPipeline_PatternToStoredTrigger(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	svc.dispatcher.Start()

	pattern := models.ContextPattern{
		PatternName:    "incident-watch",
		AppName:        "Slack",
		ScreenKeywords: []string{"deploy failed"},
		TriggerActions: []string{"take a note incident started"},
		IsActive:       true,
	}
	rec := postJSON(t, svc, "/api/context/patterns", pattern)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, svc, "/api/perception/screen/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, svc, "/api/perception/screen/frames", models.Frame{AppName: "Slack", WindowTitle: "#incidents", Text: "alert: deploy failed on api-7"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		res := getPath(t, svc, "/api/context/triggers")
		if res.Code != http.StatusOK {
			return false
		}
		var triggers []models.Trigger
		if err := json.Unmarshal(res.Body.Bytes(), &triggers); err != nil {
			return false
		}
		return len(triggers) == 1 && triggers[0].PatternName == "incident-watch"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestHandleFilters_ScreenRoundTrip(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/filters/screen", models.AppFilter{AppName: "Chrome", IsWhitelisted: true})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = getPath(t, svc, "/api/filters/screen")
	assert.Equal(t, http.StatusOK, rec.Code)

	var filters []models.AppFilter
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filters))
	require.Len(t, filters, 1)
	assert.Equal(t, "Chrome", filters[0].AppName)
	assert.True(t, filters[0].IsWhitelisted)

	// Both whitelisted and blacklisted is rejected at registration.
	rec = postJSON(t, svc, "/api/filters/screen", models.AppFilter{AppName: "Slack", IsWhitelisted: true, IsBlacklisted: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFilters_AudioRoundTrip(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/filters/audio", models.AudioFilter{SourceName: "meeting-mic", VolumeThreshold: 0.4, Keywords: []string{"aura"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = getPath(t, svc, "/api/filters/audio")
	assert.Equal(t, http.StatusOK, rec.Code)

	var filters []models.AudioFilter
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filters))
	require.Len(t, filters, 1)
	assert.Equal(t, "meeting-mic", filters[0].SourceName)
	assert.Equal(t, 0.4, filters[0].VolumeThreshold)
}

func TestHandleSearch(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := postJSON(t, svc, "/api/command/execute", executeRequest{Command: "take a note review the deploy checklist"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, svc, "/api/perception/screen/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postJSON(t, svc, "/api/perception/screen/frames", models.Frame{AppName: "Slack", Text: "deploy failed on api-7"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = getPath(t, svc, "/api/search?q=deploy")
	assert.Equal(t, http.StatusOK, rec.Code)

	var result search.RecallResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "deploy", result.Query)
	require.NotEmpty(t, result.Results)

	kinds := make(map[string]bool)
	for _, r := range result.Results {
		kinds[r.Kind] = true
	}
	assert.True(t, kinds[search.KindCommands])
	assert.True(t, kinds[search.KindScreen])

	// Empty query returns recent records.
	rec = getPath(t, svc, "/api/search")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotZero(t, result.TotalCount)
}

func TestHandleStatus(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	rec := getPath(t, svc, "/api/status")
	assert.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

	assert.Equal(t, "test-version", status["version"])
	assert.Equal(t, true, status["context_running"])
	assert.Equal(t, false, status["screen_running"])
	assert.Equal(t, false, status["audio_running"])
}

func TestDashboardServed(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	for _, path := range []string{"/", "/dashboard"} {
		rec := getPath(t, svc, path)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "aura")
	}

	rec := getPath(t, svc, "/assets/styles.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css", rec.Header().Get("Content-Type"))
}
