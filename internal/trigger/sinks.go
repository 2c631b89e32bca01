package trigger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/pkg/models"
)

// TriggerStore persists fired triggers.
type TriggerStore interface {
	InsertTrigger(ctx context.Context, t *models.Trigger) (int64, error)
}

// StoreSink writes triggers to the context store.
type StoreSink struct {
	store TriggerStore
}

// NewStoreSink builds a persistence sink.
func NewStoreSink(store TriggerStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "store" }

// Deliver implements Sink.
func (s *StoreSink) Deliver(ctx context.Context, t *models.Trigger) error {
	_, err := s.store.InsertTrigger(ctx, t)
	return err
}

// Broadcaster pushes events to connected stream clients.
type Broadcaster interface {
	Broadcast(data interface{})
}

// EventSink publishes triggers on the SSE event stream.
type EventSink struct {
	broadcaster Broadcaster
}

// NewEventSink builds an event-stream sink.
func NewEventSink(b Broadcaster) *EventSink {
	return &EventSink{broadcaster: b}
}

func (s *EventSink) Name() string { return "events" }

// Deliver implements Sink.
func (s *EventSink) Deliver(_ context.Context, t *models.Trigger) error {
	s.broadcaster.Broadcast(models.Event{
		Type: models.EventTrigger,
		Data: t,
		At:   time.Now(),
	})
	return nil
}

// WebhookSink POSTs each trigger as JSON to a configured URL, so external
// automations can react without connecting to the event stream.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink builds a webhook sink for the URL.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

// Deliver implements Sink.
func (s *WebhookSink) Deliver(ctx context.Context, t *models.Trigger) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// RedisChannel is the channel triggers are published on.
const RedisChannel = "aura:triggers"

// RedisSink mirrors triggers onto a Redis pub/sub channel for multi-process
// setups where other local agents subscribe to aura's activity.
type RedisSink struct {
	pool *redis.Pool
}

// NewRedisSink builds a Redis sink for addr (host:port).
func NewRedisSink(addr string) *RedisSink {
	return &RedisSink{
		pool: &redis.Pool{
			MaxIdle:     2,
			IdleTimeout: 240 * time.Second,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr,
					redis.DialConnectTimeout(2*time.Second),
					redis.DialWriteTimeout(2*time.Second))
			},
		},
	}
}

// NewRedisSinkFromPool builds a Redis sink over an existing pool. Tests use
// this to substitute a fake connection.
func NewRedisSinkFromPool(pool *redis.Pool) *RedisSink {
	return &RedisSink{pool: pool}
}

func (s *RedisSink) Name() string { return "redis" }

// Deliver implements Sink.
func (s *RedisSink) Deliver(ctx context.Context, t *models.Trigger) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("PUBLISH", RedisChannel, payload); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisSink) Close() error {
	return s.pool.Close()
}

// CommandRunner executes one routed command; the executor implements it.
type CommandRunner interface {
	Execute(ctx context.Context, rawCommand, contextText string) *models.CommandResult
}

// CommandSink routes a trigger's actions through the command executor. This
// is the pipeline's last hop: pattern matched, trigger fired, actions run.
type CommandSink struct {
	runner CommandRunner
}

// NewCommandSink builds a command-execution sink.
func NewCommandSink(runner CommandRunner) *CommandSink {
	return &CommandSink{runner: runner}
}

func (s *CommandSink) Name() string { return "commands" }

// Deliver implements Sink. Each action routes independently; one failed
// action does not stop the rest.
func (s *CommandSink) Deliver(ctx context.Context, t *models.Trigger) error {
	contextText := ""
	if t.Snapshot != nil && t.Snapshot.ScreenSnapshot != nil {
		contextText = t.Snapshot.ScreenSnapshot.ExtractedText
	}

	var failed int
	for _, action := range t.Actions {
		res := s.runner.Execute(ctx, action, contextText)
		if res == nil || !res.Success {
			failed++
			log.Debug().
				Str("pattern", t.PatternName).
				Str("action", action).
				Msg("triggered action did not succeed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d triggered action(s) failed", failed, len(t.Actions))
	}
	return nil
}
