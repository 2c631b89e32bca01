// Package budget counts and truncates text against token budgets. The
// clarifier prompt carries fused context, and oversized context burns sidecar
// latency, so context is trimmed to a budget before every clarifier call.
package budget

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens with the cl100k_base encoding. Safe for concurrent
// use after construction.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter builds a token counter.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the token count of text. Falls back to a bytes/4 estimate if
// encoding fails on unusual input.
func (c *Counter) Count(text string) int {
	// tokenizer v0.4.0's Codec has no Count method; len(Encode) is what
	// later versions' Count returns.
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return approxTokens(text)
	}
	return len(ids)
}

// Truncate cuts text down to at most maxTokens tokens. The second return
// reports whether anything was cut. A non-positive budget returns the text
// unchanged.
func (c *Counter) Truncate(text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || text == "" {
		return text, false
	}

	ids, _, err := c.codec.Encode(text)
	if err != nil {
		// Byte-level fallback keeps the budget roughly honored
		limit := maxTokens * 4
		if len(text) <= limit {
			return text, false
		}
		return text[:limit], true
	}

	if len(ids) <= maxTokens {
		return text, false
	}

	truncated, err := c.codec.Decode(ids[:maxTokens])
	if err != nil {
		limit := maxTokens * 4
		if len(text) <= limit {
			return text, false
		}
		return text[:limit], true
	}
	return truncated, true
}

func approxTokens(text string) int {
	return (len(text) + 3) / 4
}
