package models

import "time"

// CaptureState models the audio sentinel's two-state lifecycle.
type CaptureState string

const (
	// CaptureStateIdle means no speech is being captured.
	CaptureStateIdle CaptureState = "idle"
	// CaptureStateCapturing means an audio session is open and accumulating transcript.
	CaptureStateCapturing CaptureState = "capturing"
)

// Chunk is one sample of audio from a source, pushed by a platform shell.
// Volume is normalized to [0,1]. Text carries shell-side transcription when
// available; Data carries raw audio for a server-side transcriber.
type Chunk struct {
	SourceName string    `json:"source_name"`
	Volume     float64   `json:"volume"`
	Text       string    `json:"text,omitempty"`
	Data       []byte    `json:"data,omitempty"`
	At         time.Time `json:"at"`
}

// AudioSession is one captured utterance. The transcript is appended to while
// speech continues and the session is sealed (IsFinal=true) on silence timeout.
type AudioSession struct {
	ID         int64     `json:"id,omitempty" db:"id"`
	Transcript string    `json:"transcript" db:"transcript"`
	SourceName string    `json:"source_name" db:"source_name"`
	StartTime  time.Time `json:"start_time" db:"start_time"`
	EndTime    time.Time `json:"end_time" db:"end_time"`
	IsFinal    bool      `json:"is_final" db:"is_final"`
}

// Duration returns the captured length of the session. Zero until sealed.
func (s *AudioSession) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
