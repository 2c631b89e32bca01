// Package actions maps resolved intents onto concrete desktop actions.
package actions

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/pkg/models"
)

// Result is the outcome of one action. A failed action that can be recovered
// carries an Obstacle describing what blocked it; the caller decides whether
// to resolve it.
type Result struct {
	Success   bool
	Message   string
	NextSteps []string
	Obstacle  *models.FallbackRequest
}

// HandlerFunc executes one named action for an intent.
type HandlerFunc func(ctx context.Context, intent *models.Intent) *Result

// CommandRunner abstracts process launching so tests never spawn real
// processes.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Registry holds named action handlers. All builtins are registered by
// NewRegistry; callers may add their own.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	runner   CommandRunner
	goos     string
}

// NewRegistry returns a registry with all builtin actions registered.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]HandlerFunc),
		runner:   execRunner{},
		goos:     runtime.GOOS,
	}
	r.registerBuiltins()
	return r
}

// Register adds or replaces a named handler.
func (r *Registry) Register(name string, h HandlerFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("action name is required")
	}
	if h == nil {
		return fmt.Errorf("action %q: handler is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		log.Debug().Str("action", name).Msg("replacing action handler")
	}
	r.handlers[name] = h
	return nil
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the handler named by the intent's function. Unknown actions
// come back as a failed result with an unknown_action obstacle rather than
// an error.
func (r *Registry) Run(ctx context.Context, intent *models.Intent) *Result {
	if intent == nil || intent.FunctionName == "" {
		return &Result{
			Success: false,
			Message: "no action to run",
			Obstacle: &models.FallbackRequest{
				Reason: models.ReasonUnknownAction,
			},
		}
	}

	r.mu.RLock()
	h, ok := r.handlers[intent.FunctionName]
	r.mu.RUnlock()

	if !ok {
		log.Debug().Str("action", intent.FunctionName).Msg("unknown action")
		return &Result{
			Success: false,
			Message: fmt.Sprintf("unknown action %q", intent.FunctionName),
			Obstacle: &models.FallbackRequest{
				Reason:  models.ReasonUnknownAction,
				Details: models.FallbackDetails{ActionText: intent.RawCommand},
			},
		}
	}

	log.Debug().Str("action", intent.FunctionName).Float64("confidence", intent.Confidence).Msg("running action")
	res := h(ctx, intent)
	if res == nil {
		res = &Result{Success: true, Message: fmt.Sprintf("%s completed", intent.FunctionName)}
	}
	return res
}

// launch starts the platform launcher for an application or URL target.
func (r *Registry) launch(ctx context.Context, target string, isApp bool) error {
	var name string
	var args []string

	switch r.goos {
	case "darwin":
		if isApp {
			name, args = "open", []string{"-a", target}
		} else {
			name, args = "open", []string{target}
		}
	case "windows":
		name, args = "cmd", []string{"/c", "start", "", target}
	default:
		if isApp {
			// Linux has no by-display-name launcher; try the binary directly.
			name = strings.ReplaceAll(strings.ToLower(target), " ", "-")
		} else {
			name, args = "xdg-open", []string{target}
		}
	}
	return r.runner.Run(ctx, name, args...)
}
