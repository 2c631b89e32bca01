// Package engine fuses perception signals into context snapshots and fires
// triggers when registered patterns match.
package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/pkg/models"
)

// triggerQueueSize bounds fired triggers awaiting dispatch. Producers never
// block on a slow consumer; overflow drops the oldest-pending behavior in
// favor of dropping the new trigger with a warning.
const triggerQueueSize = 128

// SnapshotSink receives every fused snapshot, including those produced during
// quiet hours. Called outside the engine lock.
type SnapshotSink func(*models.ContextSnapshot)

// Engine maintains the current fused context and evaluates patterns against
// it. Updates and their evaluation run in one critical section, so concurrent
// perception callbacks cannot interleave between a fusion and its pattern
// pass.
type Engine struct {
	mu         sync.Mutex
	current    *models.ContextSnapshot
	patterns   []models.ContextPattern
	windowRe   map[string]*regexp.Regexp
	quietStart int
	quietEnd   int

	triggers chan models.Trigger
	sink     SnapshotSink
	enabled  atomic.Bool

	// nowFn is swappable in tests for deterministic quiet-hours checks.
	nowFn func() time.Time
}

// New builds a running engine. The sink may be nil.
func New(sink SnapshotSink) *Engine {
	e := &Engine{
		windowRe: make(map[string]*regexp.Regexp),
		triggers: make(chan models.Trigger, triggerQueueSize),
		sink:     sink,
		nowFn:    time.Now,
	}
	e.enabled.Store(true)
	return e
}

// Start resumes fusion and evaluation. No-op when already running.
func (e *Engine) Start() {
	if e.enabled.CompareAndSwap(false, true) {
		log.Info().Msg("context engine started")
	}
}

// Stop pauses fusion and evaluation; perception signals arriving while
// stopped are dropped. No-op when already stopped.
func (e *Engine) Stop() {
	if e.enabled.CompareAndSwap(true, false) {
		log.Info().Msg("context engine stopped")
	}
}

// Running reports whether the engine is fusing and evaluating.
func (e *Engine) Running() bool {
	return e.enabled.Load()
}

// Triggers returns the channel of fired triggers for dispatch.
func (e *Engine) Triggers() <-chan models.Trigger {
	return e.triggers
}

// Current returns a copy of the latest fused snapshot, or nil before the
// first signal.
func (e *Engine) Current() *models.ContextSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	snap := *e.current
	return &snap
}

// ProcessScreen fuses a screen snapshot and evaluates patterns.
func (e *Engine) ProcessScreen(snapshot *models.ScreenSnapshot) *models.ContextSnapshot {
	return e.process(snapshot, nil, nil)
}

// ProcessAudio fuses a sealed audio session and evaluates patterns.
func (e *Engine) ProcessAudio(session *models.AudioSession) *models.ContextSnapshot {
	return e.process(nil, session, nil)
}

// ProcessIntent fuses a resolved command intent and evaluates patterns.
func (e *Engine) ProcessIntent(intent *models.Intent) *models.ContextSnapshot {
	return e.process(nil, nil, intent)
}

// process is the single update path: fuse, evaluate, then hand the snapshot
// to the sink and fired triggers to the queue.
func (e *Engine) process(screen *models.ScreenSnapshot, session *models.AudioSession, intent *models.Intent) *models.ContextSnapshot {
	if !e.enabled.Load() {
		log.Debug().Msg("context engine stopped, dropping signal")
		return nil
	}

	e.mu.Lock()
	snap := e.fuseLocked(screen, session, intent)
	fired := e.evaluateLocked(snap)
	e.mu.Unlock()

	if e.sink != nil {
		e.sink(snap)
	}
	e.dispatch(fired)
	return snap
}

// Update fuses the given signals into a new current snapshot without
// evaluating patterns. Most callers want the Process variants; Update exists
// for callers that schedule evaluation separately.
func (e *Engine) Update(screen *models.ScreenSnapshot, session *models.AudioSession) *models.ContextSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fuseLocked(screen, session, nil)
}

// Evaluate runs the pattern pass against a snapshot and returns fired
// triggers without enqueueing them.
func (e *Engine) Evaluate(snap *models.ContextSnapshot) []models.Trigger {
	if snap == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluateLocked(snap)
}

// fuseLocked merges new signals over the previous snapshot, last writer wins
// per signal. The app name follows the freshest screen snapshot.
func (e *Engine) fuseLocked(screen *models.ScreenSnapshot, session *models.AudioSession, intent *models.Intent) *models.ContextSnapshot {
	next := &models.ContextSnapshot{Timestamp: e.nowFn()}
	if e.current != nil {
		next.AppName = e.current.AppName
		next.ScreenSnapshot = e.current.ScreenSnapshot
		next.AudioSession = e.current.AudioSession
		next.UserIntent = e.current.UserIntent
	}
	if screen != nil {
		next.ScreenSnapshot = screen
		next.AppName = screen.AppName
	}
	if session != nil {
		next.AudioSession = session
	}
	if intent != nil {
		next.UserIntent = intent
	}
	e.current = next
	return next
}

// evaluateLocked matches every active pattern against the snapshot. Each
// match fires its own trigger. During quiet hours nothing fires; the snapshot
// was still recorded by the caller.
func (e *Engine) evaluateLocked(snap *models.ContextSnapshot) []models.Trigger {
	if e.inQuietHoursLocked(e.nowFn()) {
		return nil
	}

	var fired []models.Trigger
	for i := range e.patterns {
		p := &e.patterns[i]
		if !e.patternMatchesLocked(p, snap) {
			continue
		}
		fired = append(fired, models.Trigger{
			ID:          uuid.NewString(),
			PatternName: p.PatternName,
			Actions:     append([]string(nil), p.TriggerActions...),
			Snapshot:    snap,
			FiredAt:     e.nowFn(),
		})
	}
	return fired
}

func (e *Engine) patternMatchesLocked(p *models.ContextPattern, snap *models.ContextSnapshot) bool {
	if !p.IsActive {
		return false
	}
	if !p.MatchesAnyApp() && !strings.EqualFold(p.AppName, snap.AppName) {
		return false
	}

	if p.WindowPattern != "" {
		title := ""
		if snap.ScreenSnapshot != nil {
			title = snap.ScreenSnapshot.WindowTitle
		}
		if !e.windowMatchesLocked(p.WindowPattern, title) {
			return false
		}
	}

	// No keyword criteria: app and window criteria alone decide.
	if len(p.AudioKeywords) == 0 && len(p.ScreenKeywords) == 0 {
		return true
	}

	var transcript, screenText string
	if snap.AudioSession != nil {
		transcript = snap.AudioSession.Transcript
	}
	if snap.ScreenSnapshot != nil {
		screenText = snap.ScreenSnapshot.ExtractedText
	}
	return containsAny(transcript, p.AudioKeywords) || containsAny(screenText, p.ScreenKeywords)
}

// windowMatchesLocked applies a window pattern: a valid regex matches as a
// regex, anything else degrades to a case-insensitive substring check.
func (e *Engine) windowMatchesLocked(pattern, title string) bool {
	if re, ok := e.windowRe[pattern]; ok && re != nil {
		return re.MatchString(title)
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(pattern))
}

func (e *Engine) dispatch(fired []models.Trigger) {
	for _, t := range fired {
		select {
		case e.triggers <- t:
			log.Debug().Str("pattern", t.PatternName).Str("trigger_id", t.ID).Msg("trigger fired")
		default:
			log.Warn().Str("pattern", t.PatternName).Msg("trigger queue full, dropping trigger")
		}
	}
}

// AddPattern registers or replaces a pattern. Invalid patterns are rejected.
// Window patterns are compiled once here; invalid regexes fall back to
// substring matching at evaluation time.
func (e *Engine) AddPattern(p models.ContextPattern) error {
	if err := p.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if p.WindowPattern != "" {
		if _, seen := e.windowRe[p.WindowPattern]; !seen {
			re, err := regexp.Compile(p.WindowPattern)
			if err != nil {
				log.Debug().Str("pattern", p.PatternName).Str("window_pattern", p.WindowPattern).
					Msg("window pattern is not a valid regex, using substring matching")
				re = nil
			}
			e.windowRe[p.WindowPattern] = re
		}
	}

	for i := range e.patterns {
		if strings.EqualFold(e.patterns[i].PatternName, p.PatternName) {
			e.patterns[i] = p
			log.Debug().Str("pattern", p.PatternName).Msg("replacing context pattern")
			return nil
		}
	}
	e.patterns = append(e.patterns, p)
	log.Info().Str("pattern", p.PatternName).Msg("context pattern registered")
	return nil
}

// Patterns returns a copy of the registered patterns, sorted by name.
func (e *Engine) Patterns() []models.ContextPattern {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := append([]models.ContextPattern(nil), e.patterns...)
	sort.Slice(out, func(i, j int) bool { return out[i].PatternName < out[j].PatternName })
	return out
}

// ResetPatterns drops all registered patterns. Used when reloading rules
// from disk.
func (e *Engine) ResetPatterns() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.patterns = nil
	e.windowRe = make(map[string]*regexp.Regexp)
}

// SetQuietHours sets the [start, end) suppression window in local hours.
// Equal values disable quiet hours. A window crossing midnight (start > end)
// wraps.
func (e *Engine) SetQuietHours(start, end int) error {
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return fmt.Errorf("quiet hours must be within 0-23, got %d-%d", start, end)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.quietStart = start
	e.quietEnd = end
	log.Info().Int("start", start).Int("end", end).Msg("quiet hours updated")
	return nil
}

// QuietHours returns the configured window.
func (e *Engine) QuietHours() (start, end int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quietStart, e.quietEnd
}

// InQuietHours reports whether t falls inside the suppression window.
func (e *Engine) InQuietHours(t time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quietHourCheckLocked(t.Hour())
}

func (e *Engine) inQuietHoursLocked(t time.Time) bool {
	return e.quietHourCheckLocked(t.Hour())
}

func (e *Engine) quietHourCheckLocked(hour int) bool {
	start, end := e.quietStart, e.quietEnd
	switch {
	case start == end:
		return false
	case start < end:
		return hour >= start && hour < end
	default:
		// Wraps midnight: e.g. 22-7 covers 22:00 through 06:59
		return hour >= start || hour < end
	}
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	folded := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(folded, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
