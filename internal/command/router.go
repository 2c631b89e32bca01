// Package command routes free-text commands to actions through three
// strategies in fixed order: exact phrase match, fuzzy match, then an
// optional clarifier whose interpretation requires explicit confirmation.
package command

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/internal/budget"
	"github.com/thebtf/aura/internal/capability"
	"github.com/thebtf/aura/pkg/models"
	"github.com/thebtf/aura/pkg/similarity"
)

const (
	// fuzzyVerbThreshold is the minimum similarity for a misspelled phrase
	// to count as a match.
	fuzzyVerbThreshold = 0.7
	// fuzzyArgThreshold is the minimum similarity to correct an app name.
	fuzzyArgThreshold = 0.65
	// maxFuzzyConfidence keeps fuzzy matches distinguishable from exact ones.
	maxFuzzyConfidence = 0.95
)

// Router resolves raw commands into intents.
type Router struct {
	categories []Category
	phrases    []phraseMatch
	clarifier  capability.Clarifier
	pending    *PendingManager
	counter    *budget.Counter
	maxTokens  int
}

// NewRouter builds a router over the builtin categories. The clarifier may
// be nil, in which case unresolvable commands are rejected outright. counter
// bounds the context text handed to the clarifier to maxTokens.
func NewRouter(clarifier capability.Clarifier, pending *PendingManager, counter *budget.Counter, maxTokens int) *Router {
	categories := builtinCategories()
	return &Router{
		categories: categories,
		phrases:    phrasesByLength(categories),
		clarifier:  clarifier,
		pending:    pending,
		counter:    counter,
		maxTokens:  maxTokens,
	}
}

// Categories returns the routing vocabulary.
func (r *Router) Categories() []Category {
	return append([]Category(nil), r.categories...)
}

// Route resolves a command. On a match the intent is non-nil and the outcome
// says which strategy resolved it; needs_confirmation outcomes carry the
// pending clarification instead.
func (r *Router) Route(ctx context.Context, rawCommand, contextText string) (*models.Intent, *models.RoutingOutcome) {
	normalized := normalize(rawCommand)
	if normalized == "" {
		return nil, &models.RoutingOutcome{
			Status: models.RoutingRejected,
			Reason: "empty command",
		}
	}

	if intent := r.exactRoute(rawCommand, normalized); intent != nil {
		log.Debug().Str("action", intent.FunctionName).Msg("command matched exactly")
		return intent, &models.RoutingOutcome{Status: models.RoutingMatched, Strategy: models.StrategyExact}
	}

	if intent := r.fuzzyRoute(rawCommand, normalized); intent != nil {
		log.Debug().Str("action", intent.FunctionName).Float64("confidence", intent.Confidence).
			Msg("command matched fuzzily")
		return intent, &models.RoutingOutcome{Status: models.RoutingMatched, Strategy: models.StrategyFuzzy}
	}

	return nil, r.clarifyRoute(ctx, rawCommand, contextText)
}

// exactRoute tries every phrase longest-first as a prefix of the command.
func (r *Router) exactRoute(rawCommand, normalized string) *models.Intent {
	for _, pm := range r.phrases {
		remainder, ok := splitPhrase(normalized, pm.phrase)
		if !ok {
			continue
		}
		return r.buildIntent(pm.category, rawCommand, remainder, 1.0)
	}
	return nil
}

// fuzzyRoute aligns the leading words of the command against every phrase
// and accepts the best scoring one above the threshold.
func (r *Router) fuzzyRoute(rawCommand, normalized string) *models.Intent {
	words := strings.Fields(normalized)

	var (
		bestScore     float64
		bestCategory  *Category
		bestRemainder string
	)
	for _, pm := range r.phrases {
		phraseWords := strings.Fields(pm.phrase)
		if len(words) < len(phraseWords) {
			continue
		}
		head := strings.Join(words[:len(phraseWords)], " ")
		if score := similarity.Score(head, pm.phrase); score > bestScore {
			bestScore = score
			bestCategory = pm.category
			bestRemainder = strings.Join(words[len(phraseWords):], " ")
		}
	}

	if bestCategory == nil || bestScore < fuzzyVerbThreshold {
		return nil
	}
	confidence := bestScore
	if confidence > maxFuzzyConfidence {
		confidence = maxFuzzyConfidence
	}
	return r.buildIntent(bestCategory, rawCommand, bestRemainder, confidence)
}

// clarifyRoute asks the clarifier for an interpretation and parks it for
// confirmation. Nothing executes on this path.
func (r *Router) clarifyRoute(ctx context.Context, rawCommand, contextText string) *models.RoutingOutcome {
	if r.clarifier == nil {
		return &models.RoutingOutcome{
			Status: models.RoutingRejected,
			Reason: "command not recognized",
		}
	}

	if r.counter != nil && r.maxTokens > 0 {
		truncated, cut := r.counter.Truncate(contextText, r.maxTokens)
		if cut {
			log.Debug().Int("max_tokens", r.maxTokens).Msg("truncated clarifier context")
		}
		contextText = truncated
	}

	result, err := r.clarifier.Clarify(ctx, rawCommand, contextText)
	if err != nil {
		log.Warn().Err(err).Msg("clarifier failed")
		return &models.RoutingOutcome{
			Status: models.RoutingRejected,
			Reason: "command not recognized and clarification failed",
		}
	}

	clarification := &models.Clarification{
		RequestID:       uuid.NewString(),
		ClarifiedIntent: result.ClarifiedIntent,
		ActionSteps:     result.ActionSteps,
		Confidence:      result.Confidence,
	}
	if r.pending != nil {
		r.pending.Put(clarification)
	}

	log.Debug().Str("request_id", clarification.RequestID).
		Float64("confidence", clarification.Confidence).
		Msg("clarification awaiting confirmation")
	return &models.RoutingOutcome{
		Status:        models.RoutingNeedsConfirmation,
		Strategy:      models.StrategyClarifier,
		Clarification: clarification,
	}
}

// buildIntent assembles the intent for a category, correcting app arguments
// against the known-app list and defaulting URL schemes.
func (r *Router) buildIntent(cat *Category, rawCommand, arg string, confidence float64) *models.Intent {
	args := make(map[string]string, len(cat.StaticArgs)+1)
	for k, v := range cat.StaticArgs {
		args[k] = v
	}

	if cat.ArgKey != "" && arg != "" {
		switch cat.ArgKey {
		case "app":
			if match, score, ok := similarity.BestMatch(arg, knownApps, fuzzyArgThreshold); ok {
				if !strings.EqualFold(match, arg) {
					log.Debug().Str("from", arg).Str("to", match).Msg("corrected app name")
				}
				arg = match
				confidence *= score
			}
		case "url":
			if !strings.Contains(arg, "://") && !strings.HasPrefix(arg, "mailto:") {
				arg = "https://" + arg
			}
		}
		args[cat.ArgKey] = arg
	}

	return &models.Intent{
		FunctionName:  cat.Action,
		Confidence:    confidence,
		RawCommand:    strings.TrimSpace(rawCommand),
		ExtractedArgs: args,
	}
}
