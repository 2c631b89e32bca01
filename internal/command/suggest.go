package command

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/internal/search"
	"github.com/thebtf/aura/pkg/models"
	"github.com/thebtf/aura/pkg/similarity"
)

const (
	suggestDefaultLimit = 5
	// suggestFetchLimit is how many rows each candidate source contributes
	// before fusion.
	suggestFetchLimit = 10
	// suggestDedupeThreshold clusters near-identical suggestions.
	suggestDedupeThreshold = 0.8
)

// Suggester proposes likely commands for a partial input by fusing history
// matches, recent commands, frequent commands, and the phrase vocabulary.
type Suggester struct {
	history    HistoryStore
	categories []Category
}

// NewSuggester builds a suggester. history may be nil, leaving only the
// phrase vocabulary as a source.
func NewSuggester(history HistoryStore) *Suggester {
	return &Suggester{
		history:    history,
		categories: builtinCategories(),
	}
}

// Suggest returns up to limit distinct suggestions, best first. An empty
// prefix yields popular and recent commands.
func (s *Suggester) Suggest(ctx context.Context, prefix string, limit int) []string {
	if limit <= 0 {
		limit = suggestDefaultLimit
	}
	norm := normalize(prefix)

	var matched, recent, frequent []string
	if s.history != nil {
		if norm != "" {
			rows, err := s.history.Search(ctx, norm, suggestFetchLimit)
			if err != nil {
				log.Debug().Err(err).Msg("history search failed")
			}
			matched = commandsOf(rows)
		}

		rows, err := s.history.Recent(ctx, suggestFetchLimit)
		if err != nil {
			log.Debug().Err(err).Msg("recent history lookup failed")
		}
		recent = commandsOf(rows)

		counts, err := s.history.Frequencies(ctx, suggestFetchLimit)
		if err != nil {
			log.Debug().Err(err).Msg("history frequency lookup failed")
		}
		for _, c := range counts {
			frequent = append(frequent, c.Command)
		}
	}

	fused := search.Fuse(matched, recent, frequent, s.phraseCompletions(norm))
	candidates := search.Texts(fused)
	if norm != "" {
		candidates = preferPrefixHits(candidates, norm)
	}

	deduped := similarity.ClusterStrings(candidates, suggestDedupeThreshold)
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped
}

// phraseCompletions offers the routing vocabulary itself as low-weight
// candidates, narrowed by the prefix when one is given.
func (s *Suggester) phraseCompletions(norm string) []string {
	var out []string
	for _, cat := range s.categories {
		for _, phrase := range cat.Phrases {
			if norm == "" || strings.HasPrefix(phrase, norm) {
				out = append(out, phrase)
			}
		}
	}
	return out
}

// preferPrefixHits stably moves candidates containing the typed prefix ahead
// of the rest.
func preferPrefixHits(candidates []string, norm string) []string {
	hits := make([]string, 0, len(candidates))
	var rest []string
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), norm) {
			hits = append(hits, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(hits, rest...)
}

func commandsOf(rows []models.CommandHistoryEntry) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Command)
	}
	return out
}
