// Package privacy provides redaction of captured text for aura.
package privacy

import (
	"regexp"
	"strings"
)

// Redacted replaces secret-looking tokens in captured text.
const Redacted = "[redacted]"

var (
	// privateTagRegex spans newlines so a tag opened mid-transcript still
	// closes.
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	// secretPatterns match credential-shaped tokens that routinely show up in
	// extracted screen text (terminals, editors, settings pages).
	secretPatterns = []*regexp.Regexp{
		// Vendor API keys: sk-..., pk-..., ghp_..., xoxb-...
		regexp.MustCompile(`\b(?:sk|pk|rk)-[A-Za-z0-9_-]{16,}\b`),
		regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`),
		regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`),
		// AWS access key IDs
		regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		// Bearer tokens in headers
		regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._+/=-]{16,}`),
		// Inline credential assignments: password=..., api_key: ...
		regexp.MustCompile(`(?i)\b(?:password|passwd|secret|token|api[_-]?key)\s*[:=]\s*\S+`),
		// Long hex blobs (session IDs, hashes pasted into terminals)
		regexp.MustCompile(`\b[0-9a-fA-F]{40,}\b`),
	}
)

// StripPrivateTags drops every <private>...</private> span, tags included.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// RedactSecrets replaces credential-shaped tokens with a redaction marker.
func RedactSecrets(text string) string {
	for _, re := range secretPatterns {
		text = re.ReplaceAllString(text, Redacted)
	}
	return text
}

// IsEntirelyPrivate reports whether nothing would survive stripping, so
// callers can skip persisting the capture altogether.
func IsEntirelyPrivate(text string) bool {
	stripped := StripPrivateTags(text)
	return strings.TrimSpace(stripped) == ""
}

// Clean strips private spans, redacts secrets, and trims whitespace. Run
// it on every capture before anything touches the database.
func Clean(text string) string {
	text = StripPrivateTags(text)
	text = RedactSecrets(text)
	return strings.TrimSpace(text)
}
