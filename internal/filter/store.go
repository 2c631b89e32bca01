// Package filter decides which applications and audio sources aura captures.
package filter

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/pkg/models"
)

// Store holds the active capture filters. All methods are safe for concurrent
// use; sentinels read it on every sample while the API and rules loader write.
//
// Evaluation rules:
//   - a blacklisted entry always suppresses capture, regardless of whitelist
//     entries elsewhere
//   - once at least one whitelist entry exists for a kind, capture for that
//     kind is restricted to whitelisted entries (whitelist mode)
//   - with no matching filter and no whitelist mode, capture is allowed
type Store struct {
	mu    sync.RWMutex
	app   map[string]models.AppFilter
	audio map[string]models.AudioFilter
}

// NewStore returns an empty filter store.
func NewStore() *Store {
	return &Store{
		app:   make(map[string]models.AppFilter),
		audio: make(map[string]models.AudioFilter),
	}
}

// AddAppFilter registers or replaces the filter for an application.
// Registration for an existing app name replaces the previous filter, so a
// single evaluation never sees conflicting entries for the same app.
func (s *Store) AddAppFilter(f models.AppFilter) error {
	if err := f.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := foldKey(f.AppName)
	if _, exists := s.app[key]; exists {
		log.Debug().Str("app", f.AppName).Msg("replacing app filter")
	}
	s.app[key] = f
	return nil
}

// AddAudioFilter registers or replaces the filter for an audio source.
func (s *Store) AddAudioFilter(f models.AudioFilter) error {
	if err := f.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := foldKey(f.SourceName)
	if _, exists := s.audio[key]; exists {
		log.Debug().Str("source", f.SourceName).Msg("replacing audio filter")
	}
	s.audio[key] = f
	return nil
}

// AppFilters returns a copy of the registered app filters, sorted by name.
func (s *Store) AppFilters() []models.AppFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AppFilter, 0, len(s.app))
	for _, f := range s.app {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppName < out[j].AppName })
	return out
}

// AudioFilters returns a copy of the registered audio filters, sorted by name.
func (s *Store) AudioFilters() []models.AudioFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AudioFilter, 0, len(s.audio))
	for _, f := range s.audio {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceName < out[j].SourceName })
	return out
}

// ShouldCaptureApp reports whether screen content for the given foreground
// app and window title may be captured.
func (s *Store) ShouldCaptureApp(appName, windowTitle string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, matched := s.app[foldKey(appName)]

	if matched && f.IsBlacklisted {
		return false
	}

	if s.appWhitelistModeLocked() {
		if !matched || !f.IsWhitelisted {
			return false
		}
		return matchesWindowPatterns(f.WindowPatterns, windowTitle)
	}

	if matched {
		return matchesWindowPatterns(f.WindowPatterns, windowTitle)
	}
	return true
}

// AudioFilterFor returns the filter registered for an audio source, if any.
func (s *Store) AudioFilterFor(sourceName string) (models.AudioFilter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.audio[foldKey(sourceName)]
	return f, ok
}

// ShouldCaptureAudio reports whether chunks from the given source may open or
// extend a capture session.
func (s *Store) ShouldCaptureAudio(sourceName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, matched := s.audio[foldKey(sourceName)]

	if matched && f.IsBlacklisted {
		return false
	}
	if s.audioWhitelistModeLocked() {
		return matched && f.IsWhitelisted
	}
	return true
}

// Reset drops all registered filters. Used when reloading rules from disk.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app = make(map[string]models.AppFilter)
	s.audio = make(map[string]models.AudioFilter)
}

func (s *Store) appWhitelistModeLocked() bool {
	for _, f := range s.app {
		if f.IsWhitelisted {
			return true
		}
	}
	return false
}

func (s *Store) audioWhitelistModeLocked() bool {
	for _, f := range s.audio {
		if f.IsWhitelisted {
			return true
		}
	}
	return false
}

// matchesWindowPatterns reports whether the window title is acceptable under
// the filter's window patterns. An empty pattern list matches any title;
// otherwise the title must contain at least one pattern, case-insensitively.
func matchesWindowPatterns(patterns []string, windowTitle string) bool {
	if len(patterns) == 0 {
		return true
	}
	title := strings.ToLower(windowTitle)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(title, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func foldKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
