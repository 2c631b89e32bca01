// Package search provides unified recall across the perception stores and
// command history, plus the ranked-list fusion behind command suggestions.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/thebtf/aura/pkg/models"
)

// Result kinds returned by Recall.
const (
	KindScreen   = "screen"
	KindAudio    = "audio"
	KindContext  = "context"
	KindCommands = "commands"
)

// excerptLen caps how much text a recalled record carries.
const excerptLen = 160

// ScreenSearcher serves screen snapshots to recall queries.
type ScreenSearcher interface {
	SearchText(ctx context.Context, query string, limit int) ([]models.ScreenSnapshot, error)
	RecentSnapshots(ctx context.Context, limit int) ([]models.ScreenSnapshot, error)
}

// AudioSearcher serves sealed audio sessions to recall queries.
type AudioSearcher interface {
	SearchText(ctx context.Context, query string, limit int) ([]models.AudioSession, error)
	RecentSessions(ctx context.Context, limit int) ([]models.AudioSession, error)
}

// ContextSearcher serves fused context snapshots to recall queries.
type ContextSearcher interface {
	SearchText(ctx context.Context, query string, limit int) ([]models.ContextSnapshot, error)
	RecentSnapshots(ctx context.Context, limit int) ([]models.ContextSnapshot, error)
}

// HistorySearcher serves past commands to recall queries.
type HistorySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.CommandHistoryEntry, error)
	Recent(ctx context.Context, limit int) ([]models.CommandHistoryEntry, error)
}

// Manager provides unified recall over everything the assistant has seen,
// heard, fused and executed. A nil store skips that source.
type Manager struct {
	screens  ScreenSearcher
	audio    AudioSearcher
	contexts ContextSearcher
	history  HistorySearcher
}

// NewManager creates a recall manager over the given stores.
func NewManager(screens ScreenSearcher, audio AudioSearcher, contexts ContextSearcher, history HistorySearcher) *Manager {
	return &Manager{
		screens:  screens,
		audio:    audio,
		contexts: contexts,
		history:  history,
	}
}

// Params narrows a recall query.
type Params struct {
	// Query is the search text. Empty recalls the most recent records.
	Query string
	// Kind restricts results to one source ("screen", "audio", "context",
	// "commands"). Empty searches all sources.
	Kind string
	// Limit caps the combined result count.
	Limit int
}

func (p Params) wants(kind string) bool {
	return p.Kind == "" || p.Kind == kind
}

// Result is one recalled record, flattened for transport.
type Result struct {
	Kind       string  `json:"kind"`
	ID         int64   `json:"id"`
	App        string  `json:"app,omitempty"`
	Source     string  `json:"source,omitempty"`
	Excerpt    string  `json:"excerpt"`
	Score      float64 `json:"score,omitempty"`
	CapturedAt int64   `json:"captured_at_epoch"`
}

// RecallResult is the combined outcome of one recall query.
type RecallResult struct {
	Query      string   `json:"query,omitempty"`
	Results    []Result `json:"results"`
	TotalCount int      `json:"total_count"`
}

// Recall searches the selected sources and merges their hits into one ranked
// list. With a query, per-source rankings fuse via RRF; command and context
// hits carry double weight over raw perception rows. Without a query the most
// recent records come back in recency order. Store failures degrade to
// partial results rather than failing the whole query.
func (m *Manager) Recall(ctx context.Context, params Params) (*RecallResult, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Limit > 100 {
		params.Limit = 100
	}
	params.Query = strings.TrimSpace(params.Query)

	var results []Result
	if params.Query == "" {
		results = m.recent(ctx, params)
	} else {
		results = m.search(ctx, params)
	}

	if len(results) > params.Limit {
		results = results[:params.Limit]
	}

	return &RecallResult{
		Query:      params.Query,
		Results:    results,
		TotalCount: len(results),
	}, nil
}

// search queries each selected store and fuses the per-store rankings.
func (m *Manager) search(ctx context.Context, params Params) []Result {
	var commandHits, contextHits, screenHits, audioHits []Result

	if params.wants(KindCommands) && m.history != nil {
		if entries, err := m.history.Search(ctx, params.Query, params.Limit); err == nil {
			for i := range entries {
				commandHits = append(commandHits, commandToResult(&entries[i]))
			}
		}
	}
	if params.wants(KindContext) && m.contexts != nil {
		if snaps, err := m.contexts.SearchText(ctx, params.Query, params.Limit); err == nil {
			for i := range snaps {
				contextHits = append(contextHits, contextToResult(&snaps[i]))
			}
		}
	}
	if params.wants(KindScreen) && m.screens != nil {
		if snaps, err := m.screens.SearchText(ctx, params.Query, params.Limit); err == nil {
			for i := range snaps {
				screenHits = append(screenHits, screenToResult(&snaps[i]))
			}
		}
	}
	if params.wants(KindAudio) && m.audio != nil {
		if sessions, err := m.audio.SearchText(ctx, params.Query, params.Limit); err == nil {
			for i := range sessions {
				audioHits = append(audioHits, audioToResult(&sessions[i]))
			}
		}
	}

	candidates := Fuse(
		resultTexts(commandHits),
		resultTexts(contextHits),
		resultTexts(screenHits),
		resultTexts(audioHits),
	)
	return rankResults(candidates, commandHits, contextHits, screenHits, audioHits)
}

// recent collects the newest records from each selected store and merges
// them by capture time.
func (m *Manager) recent(ctx context.Context, params Params) []Result {
	var results []Result

	if params.wants(KindCommands) && m.history != nil {
		if entries, err := m.history.Recent(ctx, params.Limit); err == nil {
			for i := range entries {
				results = append(results, commandToResult(&entries[i]))
			}
		}
	}
	if params.wants(KindContext) && m.contexts != nil {
		if snaps, err := m.contexts.RecentSnapshots(ctx, params.Limit); err == nil {
			for i := range snaps {
				results = append(results, contextToResult(&snaps[i]))
			}
		}
	}
	if params.wants(KindScreen) && m.screens != nil {
		if snaps, err := m.screens.RecentSnapshots(ctx, params.Limit); err == nil {
			for i := range snaps {
				results = append(results, screenToResult(&snaps[i]))
			}
		}
	}
	if params.wants(KindAudio) && m.audio != nil {
		if sessions, err := m.audio.RecentSessions(ctx, params.Limit); err == nil {
			for i := range sessions {
				results = append(results, audioToResult(&sessions[i]))
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CapturedAt > results[j].CapturedAt
	})
	return results
}

// rankResults orders the per-store hits by their fused candidate scores.
// Hits sharing an excerpt collapse to the earliest-ranked one, same as the
// Fuse dedupe rule.
func rankResults(candidates []Candidate, lists ...[]Result) []Result {
	byKey := make(map[string][]Result)
	for _, list := range lists {
		for _, r := range list {
			k := strings.ToLower(strings.TrimSpace(r.Excerpt))
			if k == "" {
				continue
			}
			byKey[k] = append(byKey[k], r)
		}
	}

	var out []Result
	for _, c := range candidates {
		k := strings.ToLower(strings.TrimSpace(c.Text))
		hits := byKey[k]
		if len(hits) == 0 {
			continue
		}
		hit := hits[0]
		hit.Score = c.Score
		out = append(out, hit)
		delete(byKey, k)
	}
	return out
}

func resultTexts(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Excerpt
	}
	return out
}

// Converters

func screenToResult(snap *models.ScreenSnapshot) Result {
	return Result{
		Kind:       KindScreen,
		ID:         snap.ID,
		App:        snap.AppName,
		Excerpt:    truncate(snap.ExtractedText, excerptLen),
		CapturedAt: snap.CapturedAt.UnixMilli(),
	}
}

func audioToResult(session *models.AudioSession) Result {
	return Result{
		Kind:       KindAudio,
		ID:         session.ID,
		Source:     session.SourceName,
		Excerpt:    truncate(session.Transcript, excerptLen),
		CapturedAt: session.StartTime.UnixMilli(),
	}
}

func contextToResult(snap *models.ContextSnapshot) Result {
	parts := make([]string, 0, 3)
	if snap.UserIntent != nil && snap.UserIntent.RawCommand != "" {
		parts = append(parts, snap.UserIntent.RawCommand)
	}
	if snap.ScreenSnapshot != nil && snap.ScreenSnapshot.ExtractedText != "" {
		parts = append(parts, snap.ScreenSnapshot.ExtractedText)
	}
	if snap.AudioSession != nil && snap.AudioSession.Transcript != "" {
		parts = append(parts, snap.AudioSession.Transcript)
	}
	return Result{
		Kind:       KindContext,
		ID:         snap.ID,
		App:        snap.AppName,
		Excerpt:    truncate(strings.Join(parts, " | "), excerptLen),
		CapturedAt: snap.Timestamp.UnixMilli(),
	}
}

func commandToResult(entry *models.CommandHistoryEntry) Result {
	return Result{
		Kind:       KindCommands,
		ID:         entry.ID,
		Excerpt:    truncate(entry.Command, excerptLen),
		CapturedAt: entry.Timestamp.UnixMilli(),
	}
}

// truncate trims text and caps it at maxLen bytes, appending "..." when cut.
func truncate(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
