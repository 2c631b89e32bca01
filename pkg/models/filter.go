// Package models provides shared data models for aura.
package models

import (
	"fmt"
	"strings"
)

// AppFilter controls whether a foreground application's screen content is captured.
// Blacklist takes precedence over whitelist when both are set on related rules.
type AppFilter struct {
	AppName        string   `json:"app_name" yaml:"app_name" db:"app_name"`
	IsWhitelisted  bool     `json:"is_whitelisted" yaml:"is_whitelisted" db:"is_whitelisted"`
	IsBlacklisted  bool     `json:"is_blacklisted" yaml:"is_blacklisted" db:"is_blacklisted"`
	WindowPatterns []string `json:"window_patterns,omitempty" yaml:"window_patterns" db:"window_patterns"`
}

// Validate rejects malformed filters at registration time.
func (f *AppFilter) Validate() error {
	if strings.TrimSpace(f.AppName) == "" {
		return fmt.Errorf("app filter: app_name is required")
	}
	if f.IsWhitelisted && f.IsBlacklisted {
		return fmt.Errorf("app filter %q: cannot be both whitelisted and blacklisted", f.AppName)
	}
	return nil
}

// AudioFilter controls whether an audio source is captured, and at what
// volume threshold a capture session opens for that source.
type AudioFilter struct {
	SourceName      string   `json:"source_name" yaml:"source_name" db:"source_name"`
	IsWhitelisted   bool     `json:"is_whitelisted" yaml:"is_whitelisted" db:"is_whitelisted"`
	IsBlacklisted   bool     `json:"is_blacklisted" yaml:"is_blacklisted" db:"is_blacklisted"`
	VolumeThreshold float64  `json:"volume_threshold" yaml:"volume_threshold" db:"volume_threshold"`
	Keywords        []string `json:"keywords,omitempty" yaml:"keywords" db:"keywords"`
}

// Validate rejects malformed filters at registration time.
func (f *AudioFilter) Validate() error {
	if strings.TrimSpace(f.SourceName) == "" {
		return fmt.Errorf("audio filter: source_name is required")
	}
	if f.IsWhitelisted && f.IsBlacklisted {
		return fmt.Errorf("audio filter %q: cannot be both whitelisted and blacklisted", f.SourceName)
	}
	if f.VolumeThreshold < 0 || f.VolumeThreshold > 1 {
		return fmt.Errorf("audio filter %q: volume_threshold must be in [0,1], got %v", f.SourceName, f.VolumeThreshold)
	}
	return nil
}
