// Package capability abstracts the heavyweight helpers aura delegates to:
// OCR text extraction, audio transcription, and LLM-backed command
// clarification. Each capability has an HTTP-backed implementation pointing
// at a configured sidecar plus a local fallback, so the daemon degrades
// rather than fails when a sidecar is absent.
package capability

import (
	"context"
	"errors"
	"time"

	"github.com/thebtf/aura/internal/config"
	"github.com/thebtf/aura/pkg/models"
)

const (
	// ClarifyTimeout bounds a single clarifier call. Command routing blocks
	// on the clarifier, so this stays short.
	ClarifyTimeout = 2500 * time.Millisecond

	// TranscribeTimeout bounds a single transcription call.
	TranscribeTimeout = 10 * time.Second

	// ExtractTimeout bounds a single OCR extraction call.
	ExtractTimeout = 10 * time.Second
)

// ErrNoText means a frame carried neither pre-extracted text nor image data
// an extractor could work with.
var ErrNoText = errors.New("capability: frame has no extractable text")

// TextExtractor turns a captured frame into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, frame *models.Frame) (string, error)
}

// Transcriber turns an audio chunk into transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk *models.Chunk) (string, error)
}

// ClarifyResult is a clarifier's interpretation of an ambiguous command.
// ActionSteps are routable command strings executed on confirmation.
type ClarifyResult struct {
	ClarifiedIntent string   `json:"clarified_intent"`
	ActionSteps     []string `json:"action_steps"`
	Confidence      float64  `json:"confidence"`
}

// Clarifier interprets a command that local routing could not resolve.
type Clarifier interface {
	Clarify(ctx context.Context, command, contextText string) (*ClarifyResult, error)
}

// NewExtractor returns the configured text extractor: an OCR sidecar when
// AURA_OCR_URL is set, otherwise the plain-text passthrough.
func NewExtractor(cfg *config.Config) TextExtractor {
	if cfg.OCRURL != "" {
		return NewHTTPExtractor(cfg.OCRURL)
	}
	return PlainTextExtractor{}
}

// NewTranscriber returns the configured transcriber: a sidecar when
// AURA_TRANSCRIBER_URL is set, otherwise the shell-side passthrough.
func NewTranscriber(cfg *config.Config) Transcriber {
	if cfg.TranscriberURL != "" {
		return NewHTTPTranscriber(cfg.TranscriberURL)
	}
	return PassthroughTranscriber{}
}

// NewClarifier returns the configured clarifier: a sidecar when
// AURA_CLARIFIER_URL is set, otherwise the local heuristic.
func NewClarifier(cfg *config.Config) Clarifier {
	if cfg.ClarifierURL != "" {
		return NewHTTPClarifier(cfg.ClarifierURL)
	}
	return HeuristicClarifier{}
}
