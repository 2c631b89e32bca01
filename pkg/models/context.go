package models

import (
	"fmt"
	"strings"
	"time"
)

// PatternWildcard matches any application name in a ContextPattern.
const PatternWildcard = "*"

// ContextPattern is a user-authored rule matched against fused context.
// App and window criteria are ANDed; the two keyword lists are ORed against
// their respective fused texts. The engine treats patterns as read-only at
// match time.
type ContextPattern struct {
	PatternName    string   `json:"pattern_name" yaml:"pattern_name" db:"pattern_name"`
	AppName        string   `json:"app_name,omitempty" yaml:"app_name" db:"app_name"`
	WindowPattern  string   `json:"window_pattern,omitempty" yaml:"window_pattern" db:"window_pattern"`
	AudioKeywords  []string `json:"audio_keywords,omitempty" yaml:"audio_keywords" db:"audio_keywords"`
	ScreenKeywords []string `json:"screen_keywords,omitempty" yaml:"screen_keywords" db:"screen_keywords"`
	TriggerActions []string `json:"trigger_actions,omitempty" yaml:"trigger_actions" db:"trigger_actions"`
	IsActive       bool     `json:"is_active" yaml:"is_active" db:"is_active"`
}

// Validate rejects malformed patterns at registration time.
func (p *ContextPattern) Validate() error {
	if strings.TrimSpace(p.PatternName) == "" {
		return fmt.Errorf("context pattern: pattern_name is required")
	}
	if p.AppName == "" && p.WindowPattern == "" &&
		len(p.AudioKeywords) == 0 && len(p.ScreenKeywords) == 0 {
		return fmt.Errorf("context pattern %q: at least one matching criterion is required", p.PatternName)
	}
	return nil
}

// MatchesAnyApp reports whether the pattern applies regardless of app.
func (p *ContextPattern) MatchesAnyApp() bool {
	return p.AppName == "" || p.AppName == PatternWildcard
}

// ContextSnapshot is the fused, timestamped view of the most recent screen
// and audio signals plus the active application. Always derived, never
// independently mutated.
type ContextSnapshot struct {
	ID             int64           `json:"id,omitempty" db:"id"`
	AppName        string          `json:"app_name" db:"app_name"`
	ScreenSnapshot *ScreenSnapshot `json:"screen_snapshot,omitempty"`
	AudioSession   *AudioSession   `json:"audio_session,omitempty"`
	UserIntent     *Intent         `json:"user_intent,omitempty"`
	Timestamp      time.Time       `json:"timestamp" db:"timestamp"`
}

// Trigger is emitted when an active ContextPattern matches a snapshot.
// Every matching pattern produces its own trigger; consumers decide
// prioritization.
type Trigger struct {
	ID          string           `json:"id"`
	PatternName string           `json:"pattern_name"`
	Actions     []string         `json:"actions"`
	Snapshot    *ContextSnapshot `json:"snapshot,omitempty"`
	FiredAt     time.Time        `json:"fired_at"`
}
