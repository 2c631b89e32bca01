package capability

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/thebtf/aura/pkg/models"
)

// PlainTextExtractor returns the text layer the platform shell already
// extracted. Frames carrying only pixels need an OCR sidecar.
type PlainTextExtractor struct{}

// Extract implements TextExtractor.
func (PlainTextExtractor) Extract(_ context.Context, frame *models.Frame) (string, error) {
	text := strings.TrimSpace(frame.Text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// HTTPExtractor delegates OCR to a sidecar service.
type HTTPExtractor struct {
	url    string
	client *http.Client
}

// NewHTTPExtractor creates an extractor that POSTs frames to an OCR sidecar.
func NewHTTPExtractor(url string) *HTTPExtractor {
	return &HTTPExtractor{
		url:    url,
		client: &http.Client{Timeout: ExtractTimeout},
	}
}

type extractRequest struct {
	AppName     string `json:"app_name"`
	WindowTitle string `json:"window_title"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
}

type extractResponse struct {
	Text string `json:"text"`
}

// Extract implements TextExtractor. Frames with a pre-extracted text layer
// skip the sidecar round-trip.
func (e *HTTPExtractor) Extract(ctx context.Context, frame *models.Frame) (string, error) {
	if text := strings.TrimSpace(frame.Text); text != "" {
		return text, nil
	}
	if len(frame.Image) == 0 {
		return "", ErrNoText
	}

	req := extractRequest{
		AppName:     frame.AppName,
		WindowTitle: frame.WindowTitle,
		Image:       base64.StdEncoding.EncodeToString(frame.Image),
	}

	var resp extractResponse
	if err := postJSON(ctx, e.client, e.url, req, &resp); err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
