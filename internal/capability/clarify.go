package capability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// HTTPClarifier delegates interpretation of ambiguous commands to an
// LLM-backed sidecar. Calls are bounded by ClarifyTimeout: routing blocks on
// the clarifier and must answer quickly or not at all.
type HTTPClarifier struct {
	url    string
	client *http.Client
}

// NewHTTPClarifier creates a clarifier that POSTs commands to a sidecar.
func NewHTTPClarifier(url string) *HTTPClarifier {
	return &HTTPClarifier{
		url:    url,
		client: &http.Client{Timeout: ClarifyTimeout},
	}
}

type clarifyRequest struct {
	Command string `json:"command"`
	Context string `json:"context,omitempty"`
}

// Clarify implements Clarifier.
func (c *HTTPClarifier) Clarify(ctx context.Context, command, contextText string) (*ClarifyResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ClarifyTimeout)
	defer cancel()

	req := clarifyRequest{Command: command, Context: contextText}

	var result ClarifyResult
	if err := postJSON(ctx, c.client, c.url, req, &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.ClarifiedIntent) == "" {
		return nil, fmt.Errorf("clarifier returned empty interpretation")
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		result.Confidence = 0.5
	}
	return &result, nil
}

// HeuristicClarifier is the local fallback when no clarifier sidecar is
// configured. It proposes a web search for the raw command, which keeps the
// confirm-before-execute flow intact without an LLM.
type HeuristicClarifier struct{}

// Clarify implements Clarifier.
func (HeuristicClarifier) Clarify(_ context.Context, command, _ string) (*ClarifyResult, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	return &ClarifyResult{
		ClarifiedIntent: fmt.Sprintf("Search the web for %q", command),
		ActionSteps:     []string{"search for " + command},
		Confidence:      0.35,
	}, nil
}
