package models

import "time"

// Intent is the resolved, typed interpretation of a free-text command.
type Intent struct {
	FunctionName  string            `json:"function_name"`
	Confidence    float64           `json:"confidence"`
	RawCommand    string            `json:"raw_command"`
	ExtractedArgs map[string]string `json:"extracted_args,omitempty"`
}

// RoutingStatus classifies the outcome of routing one command.
type RoutingStatus string

const (
	// RoutingMatched means the command resolved locally and may execute immediately.
	RoutingMatched RoutingStatus = "matched"
	// RoutingNeedsConfirmation means a clarifier produced an interpretation
	// that must be explicitly confirmed before anything executes.
	RoutingNeedsConfirmation RoutingStatus = "needs_confirmation"
	// RoutingRejected means the command could not be resolved at all.
	RoutingRejected RoutingStatus = "rejected"
)

// Routing strategies, in fixed evaluation order.
const (
	StrategyExact     = "exact"
	StrategyFuzzy     = "fuzzy"
	StrategyClarifier = "clarifier"
)

// Clarification is a clarifier-derived interpretation awaiting confirmation.
// It is valid until ExpiresAt and is consumed by at most one confirm call.
type Clarification struct {
	RequestID       string    `json:"request_id"`
	ClarifiedIntent string    `json:"clarified_intent"`
	ActionSteps     []string  `json:"action_steps"`
	Confidence      float64   `json:"confidence"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// RoutingOutcome describes how a command was (or was not) resolved.
type RoutingOutcome struct {
	Status        RoutingStatus  `json:"status"`
	Strategy      string         `json:"strategy,omitempty"`
	Clarification *Clarification `json:"clarification,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

// CommandResult is the structured result of executeCommand. Failures carry a
// human-readable message and, where applicable, a fallback recovery plan;
// nothing ever propagates as a raw panic across the interface boundary.
type CommandResult struct {
	Success   bool              `json:"success"`
	Result    string            `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	NextSteps []string          `json:"next_steps,omitempty"`
	Intent    *Intent           `json:"intent,omitempty"`
	Outcome   *RoutingOutcome   `json:"outcome,omitempty"`
	Fallback  *FallbackResponse `json:"fallback,omitempty"`
}

// ConfirmRequest carries an explicit user decision about a clarification.
type ConfirmRequest struct {
	Confirmation    bool           `json:"confirmation"`
	Clarification   *Clarification `json:"clarification"`
	OriginalCommand string         `json:"original_command"`
	Context         string         `json:"context,omitempty"`
}

// ConfirmResult is the structured result of confirmAndExecute.
type ConfirmResult struct {
	Success  bool     `json:"success"`
	Executed bool     `json:"executed"`
	Results  []string `json:"results"`
}
