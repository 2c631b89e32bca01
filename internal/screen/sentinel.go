package screen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/internal/capability"
	"github.com/thebtf/aura/internal/filter"
	"github.com/thebtf/aura/internal/privacy"
	"github.com/thebtf/aura/pkg/models"
)

// sampleTimeout bounds one sampling pass (capture plus extraction).
const sampleTimeout = 10 * time.Second

// SnapshotSink receives each emitted snapshot. Called from the sampling
// goroutine; implementations must not block for long.
type SnapshotSink func(*models.ScreenSnapshot)

// Sentinel samples the foreground window on a fixed interval. Per-app content
// hashes suppress duplicate emissions while the screen is unchanged, and a
// failed tick never stops the loop.
type Sentinel struct {
	source    FrameSource
	extractor capability.TextExtractor
	filters   *filter.Store
	interval  time.Duration
	sink      SnapshotSink

	mu       sync.Mutex
	lastHash map[string]string

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSentinel builds a screen sentinel. The sink may be nil.
func NewSentinel(source FrameSource, extractor capability.TextExtractor, filters *filter.Store, interval time.Duration, sink SnapshotSink) *Sentinel {
	if interval <= 0 {
		interval = 45 * time.Second
	}
	return &Sentinel{
		source:    source,
		extractor: extractor,
		filters:   filters,
		interval:  interval,
		sink:      sink,
		lastHash:  make(map[string]string),
	}
}

// Start launches the sampling loop. Calling Start on a running sentinel is a
// no-op.
func (s *Sentinel) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	log.Info().Dur("interval", s.interval).Msg("screen sentinel started")
	go s.run()
}

// Stop halts the sampling loop and waits for the in-flight tick to finish.
// Calling Stop on a stopped sentinel is a no-op.
func (s *Sentinel) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	<-s.done
	log.Info().Msg("screen sentinel stopped")
}

// Running reports whether the sampling loop is active.
func (s *Sentinel) Running() bool {
	return s.running.Load()
}

func (s *Sentinel) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sampleTimeout)
			s.Sample(ctx)
			cancel()
		}
	}
}

// Sample performs one sampling pass and returns the emitted snapshot, or nil
// when the tick produced nothing (no frame, filtered app, unchanged content,
// or a swallowed extraction failure).
func (s *Sentinel) Sample(ctx context.Context) *models.ScreenSnapshot {
	frame, err := s.source.Capture(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoFrame) {
			log.Warn().Err(err).Msg("frame capture failed")
		}
		return nil
	}

	if !s.filters.ShouldCaptureApp(frame.AppName, frame.WindowTitle) {
		log.Debug().Str("app", frame.AppName).Msg("app filtered, skipping sample")
		return nil
	}

	text, err := s.extractor.Extract(ctx, frame)
	if err != nil {
		if !errors.Is(err, capability.ErrNoText) {
			log.Warn().Err(err).Str("app", frame.AppName).Msg("text extraction failed")
		}
		return nil
	}

	text = privacy.Clean(text)
	if text == "" {
		return nil
	}

	hash := contentHash(text)
	if !s.contentChanged(frame.AppName, hash) {
		return nil
	}

	capturedAt := frame.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	snapshot := &models.ScreenSnapshot{
		AppName:       frame.AppName,
		WindowTitle:   frame.WindowTitle,
		ExtractedText: text,
		ContentHash:   hash,
		CapturedAt:    capturedAt,
	}

	log.Debug().
		Str("app", snapshot.AppName).
		Str("window", snapshot.WindowTitle).
		Int("text_len", len(snapshot.ExtractedText)).
		Msg("screen snapshot emitted")

	if s.sink != nil {
		s.sink(snapshot)
	}
	return snapshot
}

// contentChanged records the hash for the app and reports whether it differs
// from the previous one.
func (s *Sentinel) contentChanged(appName, hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastHash[appName] == hash {
		return false
	}
	s.lastHash[appName] = hash
	return true
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
