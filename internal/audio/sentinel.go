// Package audio turns pushed audio chunks into sealed utterance sessions.
//
// The sentinel is a two-state machine per the capture lifecycle: Idle until a
// chunk's volume crosses the source's threshold, Capturing while speech
// continues, and back to Idle when a silence window of at least the
// configured timeout seals the session. Sessions shorter than the minimum
// utterance length are discarded as noise.
package audio

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/internal/capability"
	"github.com/thebtf/aura/internal/filter"
	"github.com/thebtf/aura/internal/privacy"
	"github.com/thebtf/aura/pkg/models"
)

// chunkQueueSize bounds buffered chunks between the ingest API and the
// processing loop.
const chunkQueueSize = 64

// SessionSink receives each sealed session. Called from the processing
// goroutine; implementations must not block for long.
type SessionSink func(*models.AudioSession)

// Config holds the capture thresholds.
type Config struct {
	// SilenceTimeout is the continuous quiet period that seals a session.
	SilenceTimeout time.Duration
	// MinUtterance discards sealed sessions shorter than this.
	MinUtterance time.Duration
	// DefaultThreshold opens a session when no per-source override exists.
	DefaultThreshold float64
}

// Sentinel consumes audio chunks and emits sealed utterance sessions.
type Sentinel struct {
	transcriber capability.Transcriber
	filters     *filter.Store
	cfg         Config
	sink        SessionSink

	chunks chan models.Chunk

	mu        sync.Mutex
	state     models.CaptureState
	current   *models.AudioSession
	lastVoice time.Time

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSentinel builds an audio sentinel. The sink may be nil.
func NewSentinel(transcriber capability.Transcriber, filters *filter.Store, cfg Config, sink SessionSink) *Sentinel {
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = 2 * time.Second
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 0.15
	}
	return &Sentinel{
		transcriber: transcriber,
		filters:     filters,
		cfg:         cfg,
		sink:        sink,
		chunks:      make(chan models.Chunk, chunkQueueSize),
		state:       models.CaptureStateIdle,
	}
}

// Start launches the processing loop. Calling Start on a running sentinel is
// a no-op.
func (s *Sentinel) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	log.Info().
		Dur("silence_timeout", s.cfg.SilenceTimeout).
		Dur("min_utterance", s.cfg.MinUtterance).
		Msg("audio sentinel started")
	go s.run()
}

// Stop halts the processing loop. An open session is sealed with the
// transcript accumulated so far. Calling Stop on a stopped sentinel is a
// no-op.
func (s *Sentinel) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	<-s.done
	log.Info().Msg("audio sentinel stopped")
}

// Running reports whether the processing loop is active.
func (s *Sentinel) Running() bool {
	return s.running.Load()
}

// State returns the current capture state.
func (s *Sentinel) State() models.CaptureState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Push enqueues a chunk for processing. Returns false when the sentinel is
// stopped or the queue is full; the caller drops the chunk either way.
func (s *Sentinel) Push(chunk models.Chunk) bool {
	if !s.running.Load() {
		return false
	}
	select {
	case s.chunks <- chunk:
		return true
	default:
		log.Warn().Str("source", chunk.SourceName).Msg("audio chunk queue full, dropping chunk")
		return false
	}
}

func (s *Sentinel) run() {
	defer close(s.done)

	// The silence check runs well inside the timeout window so seals land
	// close to the deadline.
	tick := s.cfg.SilenceTimeout / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	if tick > 500*time.Millisecond {
		tick = 500 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.mu.Lock()
			sealed := s.sealLocked(time.Now())
			s.mu.Unlock()
			s.emit(sealed)
			return
		case chunk := <-s.chunks:
			ctx, cancel := context.WithTimeout(context.Background(), capability.TranscribeTimeout)
			s.HandleChunk(ctx, chunk)
			cancel()
		case <-ticker.C:
			s.CheckSilence(time.Now())
		}
	}
}

// HandleChunk runs one chunk through the state machine.
func (s *Sentinel) HandleChunk(ctx context.Context, chunk models.Chunk) {
	if !s.filters.ShouldCaptureAudio(chunk.SourceName) {
		return
	}

	threshold := s.cfg.DefaultThreshold
	if f, ok := s.filters.AudioFilterFor(chunk.SourceName); ok && f.VolumeThreshold > 0 {
		threshold = f.VolumeThreshold
	}

	at := chunk.At
	if at.IsZero() {
		at = time.Now()
	}

	// Transcribe outside the state lock: loud chunks are the only ones the
	// machine can consume, and transcription may hit a sidecar.
	var text string
	var terr error
	if chunk.Volume >= threshold {
		text, terr = s.transcriber.Transcribe(ctx, &chunk)
	}

	s.mu.Lock()
	sealed := s.ingestLocked(chunk, at, threshold, text, terr)
	s.mu.Unlock()
	s.emit(sealed)
}

// ingestLocked applies one chunk to the state machine. Returns a sealed
// session only on the transcription-error path.
func (s *Sentinel) ingestLocked(chunk models.Chunk, at time.Time, threshold float64, text string, terr error) *models.AudioSession {
	switch s.state {
	case models.CaptureStateIdle:
		if chunk.Volume < threshold {
			return nil
		}
		s.current = &models.AudioSession{
			SourceName: chunk.SourceName,
			StartTime:  at,
		}
		s.state = models.CaptureStateCapturing
		s.lastVoice = at
		log.Debug().
			Str("source", chunk.SourceName).
			Float64("volume", chunk.Volume).
			Msg("audio session opened")
		return s.appendLocked(at, text, terr)

	case models.CaptureStateCapturing:
		// One capture slot: chunks from other sources wait their turn.
		if s.current == nil || s.current.SourceName != chunk.SourceName {
			return nil
		}
		if chunk.Volume < threshold {
			return nil
		}
		s.lastVoice = at
		return s.appendLocked(at, text, terr)
	}
	return nil
}

// appendLocked folds transcribed text into the open session. A transcription
// failure seals the session with whatever was accumulated.
func (s *Sentinel) appendLocked(at time.Time, text string, terr error) *models.AudioSession {
	if terr != nil {
		log.Warn().Err(terr).Str("source", s.current.SourceName).Msg("transcription failed, sealing partial session")
		return s.sealLocked(at)
	}
	if text == "" {
		return nil
	}
	if s.current.Transcript == "" {
		s.current.Transcript = text
	} else {
		s.current.Transcript += " " + text
	}
	return nil
}

// CheckSilence seals the open session once the quiet period reaches the
// configured timeout. The session ends at the last voiced chunk, so silence
// itself never counts toward utterance length.
func (s *Sentinel) CheckSilence(now time.Time) {
	s.mu.Lock()
	var sealed *models.AudioSession
	if s.state == models.CaptureStateCapturing && now.Sub(s.lastVoice) >= s.cfg.SilenceTimeout {
		sealed = s.sealLocked(s.lastVoice)
	}
	s.mu.Unlock()
	s.emit(sealed)
}

// sealLocked closes the open session and resets to idle. Returns the session
// when it survives the noise gates, nil otherwise.
func (s *Sentinel) sealLocked(end time.Time) *models.AudioSession {
	if s.current == nil {
		return nil
	}
	session := s.current
	s.current = nil
	s.state = models.CaptureStateIdle

	if end.Before(session.StartTime) {
		end = session.StartTime
	}
	session.EndTime = end
	session.IsFinal = true

	if session.Duration() < s.cfg.MinUtterance {
		log.Debug().
			Dur("duration", session.Duration()).
			Str("source", session.SourceName).
			Msg("discarding short utterance")
		return nil
	}

	session.Transcript = privacy.Clean(session.Transcript)
	if session.Transcript == "" {
		return nil
	}

	if !s.keywordPass(session) {
		log.Debug().Str("source", session.SourceName).Msg("discarding session without filter keywords")
		return nil
	}
	return session
}

// keywordPass applies the source filter's wake-word gate: when the filter
// lists keywords, the sealed transcript must contain at least one.
func (s *Sentinel) keywordPass(session *models.AudioSession) bool {
	f, ok := s.filters.AudioFilterFor(session.SourceName)
	if !ok || len(f.Keywords) == 0 {
		return true
	}
	transcript := strings.ToLower(session.Transcript)
	for _, kw := range f.Keywords {
		if kw != "" && strings.Contains(transcript, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (s *Sentinel) emit(session *models.AudioSession) {
	if session == nil {
		return
	}
	log.Info().
		Str("source", session.SourceName).
		Dur("duration", session.Duration()).
		Int("transcript_len", len(session.Transcript)).
		Msg("audio session sealed")
	if s.sink != nil {
		s.sink(session)
	}
}
