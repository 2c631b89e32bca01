package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/internal/actions"
	"github.com/thebtf/aura/internal/fallback"
	"github.com/thebtf/aura/pkg/models"
)

// HistoryStore persists and queries executed commands.
type HistoryStore interface {
	Append(ctx context.Context, entry *models.CommandHistoryEntry) error
	Recent(ctx context.Context, limit int) ([]models.CommandHistoryEntry, error)
	Search(ctx context.Context, query string, limit int) ([]models.CommandHistoryEntry, error)
	Frequencies(ctx context.Context, limit int) ([]models.CommandCount, error)
}

// IntentSink observes every successfully routed intent, e.g. to fuse it into
// the current context.
type IntentSink func(*models.Intent)

// Executor ties routing, action execution, fallback resolution, and history
// together. Every non-empty command is recorded, whether or not it ran.
type Executor struct {
	router     *Router
	registry   *actions.Registry
	resolver   *fallback.Resolver
	history    HistoryStore
	intentSink IntentSink

	nowFn func() time.Time
}

// NewExecutor wires an executor. history and intentSink may be nil.
func NewExecutor(router *Router, registry *actions.Registry, resolver *fallback.Resolver, history HistoryStore, sink IntentSink) *Executor {
	return &Executor{
		router:     router,
		registry:   registry,
		resolver:   resolver,
		history:    history,
		intentSink: sink,
		nowFn:      time.Now,
	}
}

// Execute routes and, when matched, runs one command. The result always
// comes back structured; failures carry an error message and, where one
// exists, a fallback plan.
func (e *Executor) Execute(ctx context.Context, rawCommand, contextText string) *models.CommandResult {
	rawCommand = strings.TrimSpace(rawCommand)
	intent, outcome := e.router.Route(ctx, rawCommand, contextText)

	var result *models.CommandResult
	switch outcome.Status {
	case models.RoutingMatched:
		result = e.runMatched(ctx, intent, outcome)
	case models.RoutingNeedsConfirmation:
		c := outcome.Clarification
		result = &models.CommandResult{
			Success: false,
			Result:  c.ClarifiedIntent,
			Outcome: outcome,
			NextSteps: []string{
				fmt.Sprintf("confirm request %s to run %d step(s)", c.RequestID, len(c.ActionSteps)),
			},
		}
	default:
		fb := e.resolver.Resolve(&models.FallbackRequest{
			Reason:  models.ReasonUnknownAction,
			Details: models.FallbackDetails{ActionText: rawCommand},
		})
		result = &models.CommandResult{
			Success:   false,
			Error:     outcome.Reason,
			Outcome:   outcome,
			Fallback:  fb,
			NextSteps: fb.NextSteps,
		}
	}

	e.record(ctx, rawCommand, result)
	return result
}

func (e *Executor) runMatched(ctx context.Context, intent *models.Intent, outcome *models.RoutingOutcome) *models.CommandResult {
	res := e.registry.Run(ctx, intent)

	result := &models.CommandResult{
		Success:   res.Success,
		Intent:    intent,
		Outcome:   outcome,
		NextSteps: res.NextSteps,
	}
	if res.Success {
		result.Result = res.Message
	} else {
		result.Error = res.Message
		if res.Obstacle != nil {
			fb := e.resolver.Resolve(res.Obstacle)
			result.Fallback = fb
			result.NextSteps = append(result.NextSteps, fb.NextSteps...)
		}
	}

	if e.intentSink != nil {
		e.intentSink(intent)
	}
	return result
}

// Confirm consumes a pending clarification and, if confirmed, executes its
// action steps. The server-side copy of the clarification is authoritative;
// the steps a client echoes back are ignored.
func (e *Executor) Confirm(ctx context.Context, req *models.ConfirmRequest) *models.ConfirmResult {
	if req == nil || req.Clarification == nil || req.Clarification.RequestID == "" {
		return &models.ConfirmResult{
			Success: false,
			Results: []string{"no clarification to confirm"},
		}
	}

	stored, ok := e.router.pending.Consume(req.Clarification.RequestID)
	if !ok {
		return &models.ConfirmResult{
			Success: false,
			Results: []string{"clarification expired or unknown; run the command again"},
		}
	}

	if !req.Confirmation {
		log.Debug().Str("request_id", stored.RequestID).Msg("clarification declined")
		return &models.ConfirmResult{
			Success:  true,
			Executed: false,
			Results:  []string{"cancelled"},
		}
	}

	if len(stored.ActionSteps) == 0 {
		return &models.ConfirmResult{
			Success:  false,
			Executed: false,
			Results:  []string{"clarification has no action steps"},
		}
	}

	out := &models.ConfirmResult{Success: true, Executed: true}
	for _, step := range stored.ActionSteps {
		cr := e.Execute(ctx, step, req.Context)

		msg := cr.Result
		if !cr.Success {
			out.Success = false
			msg = cr.Error
			if cr.Outcome != nil && cr.Outcome.Status == models.RoutingNeedsConfirmation {
				msg = "step needs further clarification"
			}
			if msg == "" {
				msg = "step did not execute"
			}
		}
		out.Results = append(out.Results, fmt.Sprintf("%s: %s", step, msg))
	}
	return out
}

// record appends the command to history; failures to persist never affect
// the command result.
func (e *Executor) record(ctx context.Context, rawCommand string, result *models.CommandResult) {
	if e.history == nil || rawCommand == "" {
		return
	}

	summary := result.Result
	if !result.Success {
		summary = result.Error
		if result.Outcome != nil && result.Outcome.Status == models.RoutingNeedsConfirmation {
			summary = "awaiting confirmation"
		}
	}

	entry := &models.CommandHistoryEntry{
		Command:       rawCommand,
		Success:       result.Success,
		Timestamp:     e.nowFn(),
		ResultSummary: summary,
	}
	if err := e.history.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("failed to record command history")
	}
}
