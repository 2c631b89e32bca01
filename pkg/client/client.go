// Package client is the Go client for the aura daemon's HTTP API. It is
// used by auractl and the platform ingest shells, and can manage the
// daemon's lifecycle (spawn, version check, restart).
package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/aura/pkg/models"
)

// defaultTimeout bounds ordinary API calls. Event streaming uses its own
// request without a client timeout.
const defaultTimeout = 30 * time.Second

// Client talks to one aura daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the daemon on the given local port.
func New(port int) *Client {
	return NewWithBaseURL(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// NewWithBaseURL returns a client for an explicit base URL. Useful for tests
// and non-default bindings.
func NewWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// NewFromEnv returns a client for the configured port (AURA_PORT or the
// default).
func NewFromEnv() *Client {
	return New(GetPort())
}

// BaseURL returns the daemon address this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HealthStatus is the daemon's liveness report.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// IngestAck acknowledges one pushed frame or chunk. Captured is set for
// screen frames that produced a snapshot on the spot.
type IngestAck struct {
	Accepted bool `json:"accepted"`
	Captured bool `json:"captured"`
}

// StatusReport mirrors GET /api/status.
type StatusReport struct {
	Version           string `json:"version"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	ScreenRunning     bool   `json:"screen_running"`
	AudioRunning      bool   `json:"audio_running"`
	AudioState        string `json:"audio_state"`
	ContextRunning    bool   `json:"context_running"`
	DispatcherRunning bool   `json:"dispatcher_running"`
	Patterns          int    `json:"patterns"`
	QuietHoursStart   int    `json:"quiet_hours_start"`
	QuietHoursEnd     int    `json:"quiet_hours_end"`
	SSEClients        int    `json:"sse_clients"`
}

// SearchHit is one recalled record from GET /api/search.
type SearchHit struct {
	Kind       string  `json:"kind"`
	ID         int64   `json:"id"`
	App        string  `json:"app,omitempty"`
	Source     string  `json:"source,omitempty"`
	Excerpt    string  `json:"excerpt"`
	Score      float64 `json:"score,omitempty"`
	CapturedAt int64   `json:"captured_at_epoch"`
}

// SearchOutcome is the combined result of one recall query.
type SearchOutcome struct {
	Query      string      `json:"query,omitempty"`
	Results    []SearchHit `json:"results"`
	TotalCount int         `json:"total_count"`
}

// StreamEvent is one envelope read off the /api/events stream. Data stays
// raw so callers decode only the payloads they care about.
type StreamEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

// Health reports daemon liveness and version.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.get(ctx, "/api/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version returns the daemon's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out map[string]string
	if err := c.get(ctx, "/api/version", &out); err != nil {
		return "", err
	}
	return out["version"], nil
}

// Status returns the daemon's component status.
func (c *Client) Status(ctx context.Context) (*StatusReport, error) {
	var out StatusReport
	if err := c.get(ctx, "/api/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Execute routes and runs one free-text command. contextText may be empty;
// the daemon then builds context from its own current snapshot.
func (c *Client) Execute(ctx context.Context, command, contextText string) (*models.CommandResult, error) {
	body := map[string]string{"command": command}
	if contextText != "" {
		body["context"] = contextText
	}
	var out models.CommandResult
	if err := c.post(ctx, "/api/command/execute", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Confirm resolves a pending clarification with an explicit user decision.
func (c *Client) Confirm(ctx context.Context, req *models.ConfirmRequest) (*models.ConfirmResult, error) {
	var out models.ConfirmResult
	if err := c.post(ctx, "/api/command/confirm", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Suggestions returns history-ranked completions for a command prefix.
func (c *Client) Suggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	q := url.Values{}
	if prefix != "" {
		q.Set("q", prefix)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []string
	if err := c.get(ctx, "/api/command/suggestions?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns recent executed commands, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]models.CommandHistoryEntry, error) {
	var out []models.CommandHistoryEntry
	if err := c.get(ctx, "/api/command/history?"+limitQuery(limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartScreen starts the screen sentinel.
func (c *Client) StartScreen(ctx context.Context) error {
	return c.post(ctx, "/api/perception/screen/start", nil, nil)
}

// StopScreen stops the screen sentinel.
func (c *Client) StopScreen(ctx context.Context) error {
	return c.post(ctx, "/api/perception/screen/stop", nil, nil)
}

// PushFrame submits a foreground-window frame from a platform shell.
func (c *Client) PushFrame(ctx context.Context, frame models.Frame) (*IngestAck, error) {
	var out IngestAck
	if err := c.post(ctx, "/api/perception/screen/frames", frame, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScreenSnapshots returns recent screen snapshots, newest first.
func (c *Client) ScreenSnapshots(ctx context.Context, limit int) ([]models.ScreenSnapshot, error) {
	var out []models.ScreenSnapshot
	if err := c.get(ctx, "/api/perception/screen/snapshots?"+limitQuery(limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartAudio starts the audio sentinel.
func (c *Client) StartAudio(ctx context.Context) error {
	return c.post(ctx, "/api/perception/audio/start", nil, nil)
}

// StopAudio stops the audio sentinel.
func (c *Client) StopAudio(ctx context.Context) error {
	return c.post(ctx, "/api/perception/audio/stop", nil, nil)
}

// PushChunk submits an audio level/transcription chunk from a platform shell.
func (c *Client) PushChunk(ctx context.Context, chunk models.Chunk) (*IngestAck, error) {
	var out IngestAck
	if err := c.post(ctx, "/api/perception/audio/chunks", chunk, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AudioSessions returns recent sealed audio sessions, newest first.
func (c *Client) AudioSessions(ctx context.Context, limit int) ([]models.AudioSession, error) {
	var out []models.AudioSession
	if err := c.get(ctx, "/api/perception/audio/sessions?"+limitQuery(limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartContext starts the context engine.
func (c *Client) StartContext(ctx context.Context) error {
	return c.post(ctx, "/api/context/start", nil, nil)
}

// StopContext stops the context engine.
func (c *Client) StopContext(ctx context.Context) error {
	return c.post(ctx, "/api/context/stop", nil, nil)
}

// AddPattern registers a context pattern and persists it.
func (c *Client) AddPattern(ctx context.Context, p models.ContextPattern) error {
	return c.post(ctx, "/api/context/patterns", p, nil)
}

// Patterns returns the registered context patterns.
func (c *Client) Patterns(ctx context.Context) ([]models.ContextPattern, error) {
	var out []models.ContextPattern
	if err := c.get(ctx, "/api/context/patterns", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetQuietHours sets the trigger suppression window in local hours.
func (c *Client) SetQuietHours(ctx context.Context, startHour, endHour int) error {
	body := map[string]int{"start_hour": startHour, "end_hour": endHour}
	return c.post(ctx, "/api/context/quiet-hours", body, nil)
}

// ContextSnapshots returns recent fused context snapshots, newest first.
func (c *Client) ContextSnapshots(ctx context.Context, limit int) ([]models.ContextSnapshot, error) {
	var out []models.ContextSnapshot
	if err := c.get(ctx, "/api/context/snapshots?"+limitQuery(limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Triggers returns recently fired triggers, newest first.
func (c *Client) Triggers(ctx context.Context, limit int) ([]models.Trigger, error) {
	var out []models.Trigger
	if err := c.get(ctx, "/api/context/triggers?"+limitQuery(limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddScreenFilter registers an app capture filter and persists it.
func (c *Client) AddScreenFilter(ctx context.Context, f models.AppFilter) error {
	return c.post(ctx, "/api/filters/screen", f, nil)
}

// ScreenFilters returns the registered app capture filters.
func (c *Client) ScreenFilters(ctx context.Context) ([]models.AppFilter, error) {
	var out []models.AppFilter
	if err := c.get(ctx, "/api/filters/screen", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddAudioFilter registers an audio source filter and persists it.
func (c *Client) AddAudioFilter(ctx context.Context, f models.AudioFilter) error {
	return c.post(ctx, "/api/filters/audio", f, nil)
}

// AudioFilters returns the registered audio source filters.
func (c *Client) AudioFilters(ctx context.Context) ([]models.AudioFilter, error) {
	var out []models.AudioFilter
	if err := c.get(ctx, "/api/filters/audio", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search recalls stored perception and command records. kind narrows the
// sources ("screen", "audio", "context", "commands"); empty searches all.
func (c *Client) Search(ctx context.Context, query, kind string, limit int) (*SearchOutcome, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if kind != "" {
		q.Set("kind", kind)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out SearchOutcome
	if err := c.get(ctx, "/api/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamEvents subscribes to /api/events and invokes fn for every event
// until ctx is cancelled or the stream ends. The initial "connected"
// message is delivered like any other event.
func (c *Client) StreamEvents(ctx context.Context, fn func(StreamEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: the stream stays open until cancelled.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream: daemon returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}
		fn(event)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return scanner.Err()
}

func limitQuery(limit int) string {
	if limit <= 0 {
		return ""
	}
	return "limit=" + strconv.Itoa(limit)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
