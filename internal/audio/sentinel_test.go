package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/aura/internal/capability"
	"github.com/thebtf/aura/internal/filter"
	"github.com/thebtf/aura/pkg/models"
)

// flakyTranscriber fails once at a chosen call, passing chunks through
// otherwise.
type flakyTranscriber struct {
	calls  int
	failAt int
}

func (f *flakyTranscriber) Transcribe(_ context.Context, chunk *models.Chunk) (string, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return "", errors.New("transcriber sidecar down")
	}
	return chunk.Text, nil
}

// sessionRecorder collects sealed sessions.
type sessionRecorder struct {
	mu       sync.Mutex
	sessions []*models.AudioSession
}

func (r *sessionRecorder) sink(s *models.AudioSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *sessionRecorder) all() []*models.AudioSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AudioSession(nil), r.sessions...)
}

// SentinelSuite is a test suite for audio sentinel operations.
type SentinelSuite struct {
	suite.Suite
	filters  *filter.Store
	recorder *sessionRecorder
	sentinel *Sentinel
	base     time.Time
}

func (s *SentinelSuite) SetupTest() {
	s.filters = filter.NewStore()
	s.recorder = &sessionRecorder{}
	s.sentinel = NewSentinel(capability.PassthroughTranscriber{}, s.filters, Config{
		SilenceTimeout:   2 * time.Second,
		MinUtterance:     600 * time.Millisecond,
		DefaultThreshold: 0.15,
	}, s.recorder.sink)
	s.base = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
}

func TestSentinelSuite(t *testing.T) {
	suite.Run(t, new(SentinelSuite))
}

// chunk builds a voiced chunk at an offset from the suite base time.
func (s *SentinelSuite) chunk(source string, volume float64, text string, offset time.Duration) models.Chunk {
	return models.Chunk{
		SourceName: source,
		Volume:     volume,
		Text:       text,
		At:         s.base.Add(offset),
	}
}

func (s *SentinelSuite) TestIdleUntilThresholdCrossed() {
	s.Equal(models.CaptureStateIdle, s.sentinel.State())

	// Quiet chunks never open a session
	s.sentinel.HandleChunk(context.Background(), s.chunk("microphone", 0.05, "background hum", 0))
	s.Equal(models.CaptureStateIdle, s.sentinel.State())

	// A loud chunk opens one
	s.sentinel.HandleChunk(context.Background(), s.chunk("microphone", 0.5, "hello", time.Second))
	s.Equal(models.CaptureStateCapturing, s.sentinel.State())
}

func (s *SentinelSuite) TestSealOnlyAfterFullSilenceTimeout() {
	ctx := context.Background()
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "schedule the", 0))
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "standup meeting", time.Second))

	// Silence shorter than the timeout does not seal
	s.sentinel.CheckSilence(s.base.Add(time.Second + 1500*time.Millisecond))
	s.Equal(models.CaptureStateCapturing, s.sentinel.State())
	s.Empty(s.recorder.all())

	// Renewed speech pushes the deadline out
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "tomorrow", 3*time.Second))
	s.sentinel.CheckSilence(s.base.Add(4 * time.Second))
	s.Empty(s.recorder.all())

	// A full quiet window seals
	s.sentinel.CheckSilence(s.base.Add(5 * time.Second))
	s.Equal(models.CaptureStateIdle, s.sentinel.State())

	sessions := s.recorder.all()
	s.Require().Len(sessions, 1)
	s.Equal("schedule the standup meeting tomorrow", sessions[0].Transcript)
	s.True(sessions[0].IsFinal)
	// The session ends at the last voiced chunk, not at the seal check
	s.Equal(s.base.Add(3*time.Second), sessions[0].EndTime)
	s.Equal(3*time.Second, sessions[0].Duration())
}

func (s *SentinelSuite) TestShortUtteranceDiscarded() {
	ctx := context.Background()
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "uh", 0))
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "hm", 200*time.Millisecond))

	// 200ms of speech is under the 600ms minimum
	s.sentinel.CheckSilence(s.base.Add(3 * time.Second))
	s.Equal(models.CaptureStateIdle, s.sentinel.State())
	s.Empty(s.recorder.all())
}

func (s *SentinelSuite) TestPerSourceThresholdOverride() {
	s.Require().NoError(s.filters.AddAudioFilter(models.AudioFilter{
		SourceName:      "line-in",
		VolumeThreshold: 0.6,
	}))

	ctx := context.Background()

	// 0.3 clears the default threshold but not the line-in override
	s.sentinel.HandleChunk(ctx, s.chunk("line-in", 0.3, "quiet music", 0))
	s.Equal(models.CaptureStateIdle, s.sentinel.State())

	s.sentinel.HandleChunk(ctx, s.chunk("line-in", 0.7, "loud announcement", 0))
	s.Equal(models.CaptureStateCapturing, s.sentinel.State())
}

func (s *SentinelSuite) TestBlacklistedSourceIgnored() {
	s.Require().NoError(s.filters.AddAudioFilter(models.AudioFilter{
		SourceName:    "system",
		IsBlacklisted: true,
	}))

	s.sentinel.HandleChunk(context.Background(), s.chunk("system", 0.9, "notification sound", 0))
	s.Equal(models.CaptureStateIdle, s.sentinel.State())
}

func (s *SentinelSuite) TestSingleCaptureSlot() {
	ctx := context.Background()
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "dictating a note", 0))
	s.Equal(models.CaptureStateCapturing, s.sentinel.State())

	// Chunks from other sources neither append nor reset the silence clock
	s.sentinel.HandleChunk(ctx, s.chunk("line-in", 0.9, "crosstalk", 500*time.Millisecond))
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "about the release", time.Second))

	s.sentinel.CheckSilence(s.base.Add(4 * time.Second))
	sessions := s.recorder.all()
	s.Require().Len(sessions, 1)
	s.Equal("microphone", sessions[0].SourceName)
	s.NotContains(sessions[0].Transcript, "crosstalk")
}

func (s *SentinelSuite) TestTranscriptionErrorSealsPartial() {
	flaky := &flakyTranscriber{failAt: 3}
	sentinel := NewSentinel(flaky, s.filters, Config{
		SilenceTimeout:   2 * time.Second,
		MinUtterance:     600 * time.Millisecond,
		DefaultThreshold: 0.15,
	}, s.recorder.sink)

	ctx := context.Background()
	sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "first part", 0))
	sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "second part", time.Second))
	// Third chunk's transcription fails: session seals with what it has
	sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "lost part", 2*time.Second))

	s.Equal(models.CaptureStateIdle, sentinel.State())
	sessions := s.recorder.all()
	s.Require().Len(sessions, 1)
	s.Equal("first part second part", sessions[0].Transcript)
	s.True(sessions[0].IsFinal)
}

func (s *SentinelSuite) TestKeywordGate() {
	s.Require().NoError(s.filters.AddAudioFilter(models.AudioFilter{
		SourceName: "microphone",
		Keywords:   []string{"aura"},
	}))

	ctx := context.Background()

	// Session without the wake word is discarded at seal
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "just chatting with", 0))
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "a colleague", time.Second))
	s.sentinel.CheckSilence(s.base.Add(4 * time.Second))
	s.Empty(s.recorder.all())

	// Session containing it is emitted
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "hey Aura open", 10*time.Second))
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "the calendar", 11*time.Second))
	s.sentinel.CheckSilence(s.base.Add(14 * time.Second))
	s.Require().Len(s.recorder.all(), 1)
}

func (s *SentinelSuite) TestPrivateSpeechRedacted() {
	ctx := context.Background()
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "the password=hunter2secret for staging", 0))
	s.sentinel.HandleChunk(ctx, s.chunk("microphone", 0.5, "is rotated", time.Second))
	s.sentinel.CheckSilence(s.base.Add(4 * time.Second))

	sessions := s.recorder.all()
	s.Require().Len(sessions, 1)
	s.NotContains(sessions[0].Transcript, "hunter2secret")
}

func (s *SentinelSuite) TestStopSealsOpenSession() {
	s.sentinel.Start()
	s.Require().True(s.sentinel.Running())

	now := time.Now()
	s.True(s.sentinel.Push(models.Chunk{
		SourceName: "microphone", Volume: 0.5, Text: "wrap up before", At: now.Add(-2 * time.Second),
	}))
	s.True(s.sentinel.Push(models.Chunk{
		SourceName: "microphone", Volume: 0.5, Text: "shutdown", At: now.Add(-time.Second),
	}))

	s.Eventually(func() bool {
		return s.sentinel.State() == models.CaptureStateCapturing
	}, time.Second, 5*time.Millisecond)

	// Stop seals the open session instead of dropping it
	s.sentinel.Stop()
	s.False(s.sentinel.Running())

	sessions := s.recorder.all()
	s.Require().Len(sessions, 1)
	s.Equal("wrap up before shutdown", sessions[0].Transcript)
	s.True(sessions[0].IsFinal)

	// Push after stop is rejected
	s.False(s.sentinel.Push(models.Chunk{SourceName: "microphone", Volume: 0.9}))
}

func (s *SentinelSuite) TestStartStopIdempotent() {
	s.sentinel.Start()
	s.sentinel.Start()
	s.True(s.sentinel.Running())

	s.sentinel.Stop()
	s.sentinel.Stop()
	s.False(s.sentinel.Running())

	// Restart works after a stop
	s.sentinel.Start()
	s.True(s.sentinel.Running())
	s.sentinel.Stop()
}
