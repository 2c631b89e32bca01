package models

// FallbackReason classifies why an action could not proceed.
type FallbackReason string

const (
	ReasonMissingApp        FallbackReason = "missing_app"
	ReasonMissingOAuth      FallbackReason = "missing_oauth"
	ReasonMissingPermission FallbackReason = "missing_permission"
	ReasonMissingScript     FallbackReason = "missing_script"
	ReasonUnknownAction     FallbackReason = "unknown_action"
)

// FallbackDetails carries the reason-specific context for resolution.
// Platform defaults to the running OS when empty.
type FallbackDetails struct {
	AppName        string `json:"app_name,omitempty"`
	Provider       string `json:"provider,omitempty"`
	PermissionType string `json:"permission_type,omitempty"`
	ActionText     string `json:"action_text,omitempty"`
	Platform       string `json:"platform,omitempty"`
}

// FallbackRequest asks the resolver for a recovery plan.
type FallbackRequest struct {
	Reason  FallbackReason  `json:"reason"`
	Details FallbackDetails `json:"details"`
}

// FallbackAction is the recommended recovery action.
type FallbackAction string

const (
	FallbackInstallApp      FallbackAction = "install_app"
	FallbackAuthorize       FallbackAction = "authorize"
	FallbackGrantPermission FallbackAction = "grant_permission"
	FallbackGenerateScript  FallbackAction = "generate_script"
	FallbackManual          FallbackAction = "manual"
)

// FallbackResponse is a structured recovery plan. Success reports whether a
// concrete plan exists; unknown or unrecognized reasons always yield
// Success=false with generic remediation steps.
type FallbackResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Action    FallbackAction `json:"action"`
	NextSteps []string       `json:"next_steps"`
}
