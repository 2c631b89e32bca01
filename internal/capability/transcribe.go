package capability

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/thebtf/aura/pkg/models"
)

// PassthroughTranscriber returns the transcript text the platform shell
// attached to the chunk. Chunks carrying only raw audio yield empty text.
type PassthroughTranscriber struct{}

// Transcribe implements Transcriber.
func (PassthroughTranscriber) Transcribe(_ context.Context, chunk *models.Chunk) (string, error) {
	return strings.TrimSpace(chunk.Text), nil
}

// HTTPTranscriber delegates speech-to-text to a sidecar service.
type HTTPTranscriber struct {
	url    string
	client *http.Client
}

// NewHTTPTranscriber creates a transcriber that POSTs chunks to a sidecar.
func NewHTTPTranscriber(url string) *HTTPTranscriber {
	return &HTTPTranscriber{
		url:    url,
		client: &http.Client{Timeout: TranscribeTimeout},
	}
}

type transcribeRequest struct {
	SourceName string `json:"source_name"`
	Text       string `json:"text,omitempty"`
	Data       string `json:"data,omitempty"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe implements Transcriber. Chunks with shell-side transcription
// skip the sidecar round-trip.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, chunk *models.Chunk) (string, error) {
	if text := strings.TrimSpace(chunk.Text); text != "" {
		return text, nil
	}
	if len(chunk.Data) == 0 {
		return "", nil
	}

	req := transcribeRequest{
		SourceName: chunk.SourceName,
		Data:       base64.StdEncoding.EncodeToString(chunk.Data),
	}

	var resp transcribeResponse
	if err := postJSON(ctx, t.client, t.url, req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}
