// Package fallback turns blocked actions into structured recovery plans.
// Resolution never fails: every request yields a response, and reasons the
// resolver cannot plan for come back with Success=false and generic guidance.
package fallback

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/pkg/models"
)

// oauthEndpoints maps known providers to their authorization URLs.
var oauthEndpoints = map[string]string{
	"google":    "https://accounts.google.com/o/oauth2/v2/auth",
	"github":    "https://github.com/login/oauth/authorize",
	"slack":     "https://slack.com/oauth/v2/authorize",
	"notion":    "https://api.notion.com/v1/oauth/authorize",
	"microsoft": "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
}

// macPermissionPanes maps permission types to System Settings panes.
var macPermissionPanes = map[string]string{
	"screen_recording": "Screen Recording",
	"microphone":       "Microphone",
	"accessibility":    "Accessibility",
	"automation":       "Automation",
}

// Resolver builds recovery plans for blocked actions.
type Resolver struct{}

// NewResolver returns a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve maps a blocked action to a recovery plan. It never returns nil and
// never errors; unknown reasons produce an unsuccessful plan with generic
// next steps.
func (r *Resolver) Resolve(req *models.FallbackRequest) *models.FallbackResponse {
	if req == nil {
		return r.unsupported("")
	}
	log.Debug().Str("reason", string(req.Reason)).Msg("resolving fallback")

	switch req.Reason {
	case models.ReasonMissingApp:
		return r.missingApp(req.Details)
	case models.ReasonMissingOAuth:
		return r.missingOAuth(req.Details)
	case models.ReasonMissingPermission:
		return r.missingPermission(req.Details)
	case models.ReasonMissingScript:
		return r.missingScript(req.Details)
	case models.ReasonUnknownAction:
		return r.unknownAction(req.Details)
	default:
		return r.unsupported(string(req.Reason))
	}
}

func (r *Resolver) missingApp(d models.FallbackDetails) *models.FallbackResponse {
	app := d.AppName
	if app == "" {
		app = "the application"
	}

	var steps []string
	switch platformOf(d) {
	case "darwin":
		steps = []string{
			fmt.Sprintf("Open the App Store and search for %q", app),
			fmt.Sprintf("Or install it from a terminal: brew install --cask %s", appSlug(app)),
			"Re-run the command once the installation finishes",
		}
	case "windows":
		steps = []string{
			fmt.Sprintf("Open the Microsoft Store and search for %q", app),
			fmt.Sprintf("Or install it from a terminal: winget install %q", app),
			"Re-run the command once the installation finishes",
		}
	default:
		steps = []string{
			fmt.Sprintf("Install %q with your package manager, e.g. sudo apt install %s", app, appSlug(app)),
			fmt.Sprintf("Or look for a Flatpak: flatpak search %s", appSlug(app)),
			"Re-run the command once the installation finishes",
		}
	}

	return &models.FallbackResponse{
		Success:   true,
		Message:   fmt.Sprintf("%s is not installed", app),
		Action:    models.FallbackInstallApp,
		NextSteps: steps,
	}
}

func (r *Resolver) missingOAuth(d models.FallbackDetails) *models.FallbackResponse {
	provider := strings.ToLower(strings.TrimSpace(d.Provider))
	if url, ok := oauthEndpoints[provider]; ok {
		return &models.FallbackResponse{
			Success: true,
			Message: fmt.Sprintf("%s access is not authorized yet", titleCase(provider)),
			Action:  models.FallbackAuthorize,
			NextSteps: []string{
				fmt.Sprintf("Open %s in a browser and sign in", url),
				"Approve the requested access scopes",
				"Re-run the command once authorization completes",
			},
		}
	}

	name := d.Provider
	if name == "" {
		name = "the service"
	}
	return &models.FallbackResponse{
		Success: false,
		Message: fmt.Sprintf("no authorization flow is known for %s", name),
		Action:  models.FallbackAuthorize,
		NextSteps: []string{
			fmt.Sprintf("Check the developer settings of %s for an OAuth or API-token page", name),
			"Create a token with the scopes the action needs",
			"Re-run the command once access is configured",
		},
	}
}

func (r *Resolver) missingPermission(d models.FallbackDetails) *models.FallbackResponse {
	perm := strings.ToLower(strings.TrimSpace(d.PermissionType))
	display := strings.ReplaceAll(perm, "_", " ")
	if display == "" {
		display = "a system permission"
	}

	var steps []string
	switch platformOf(d) {
	case "darwin":
		pane, ok := macPermissionPanes[perm]
		if !ok {
			pane = "Privacy & Security"
		}
		steps = []string{
			fmt.Sprintf("Open System Settings > Privacy & Security > %s", pane),
			"Enable access for this application",
			"Quit and reopen the application so the grant takes effect",
		}
	case "windows":
		steps = []string{
			fmt.Sprintf("Open Settings > Privacy & security and find the %s section", display),
			"Allow access for desktop apps",
			"Re-run the command",
		}
	default:
		steps = []string{
			fmt.Sprintf("Grant %s access in your desktop environment's privacy settings", display),
			"On portal-based systems, re-trigger the action and accept the permission prompt",
			"Re-run the command",
		}
	}

	return &models.FallbackResponse{
		Success:   true,
		Message:   fmt.Sprintf("missing %s permission", display),
		Action:    models.FallbackGrantPermission,
		NextSteps: steps,
	}
}

func (r *Resolver) missingScript(d models.FallbackDetails) *models.FallbackResponse {
	steps := []string{
		"No ready-made automation exists for this action",
		"A small script can cover it; sketch the steps the action needs first",
	}

	action := strings.ToLower(d.ActionText)
	switch {
	case containsAny(action, "calendar", "meeting", "event", "schedule"):
		steps = append(steps, "Calendar automation: most calendar apps expose a CLI or URL scheme for creating events")
	case containsAny(action, "email", "mail", "message"):
		steps = append(steps, "Email automation: a mailto: URL pre-fills recipient, subject, and body in the default client")
	}
	steps = append(steps, "Save the script and register it as a custom action")

	return &models.FallbackResponse{
		Success:   true,
		Message:   "this action needs a custom script",
		Action:    models.FallbackGenerateScript,
		NextSteps: steps,
	}
}

// unknownAction is deliberately never successful: there is nothing to
// install, grant, or script when the action itself is not understood.
func (r *Resolver) unknownAction(d models.FallbackDetails) *models.FallbackResponse {
	msg := "the requested action is not recognized"
	if d.ActionText != "" {
		msg = fmt.Sprintf("the requested action %q is not recognized", d.ActionText)
	}
	return &models.FallbackResponse{
		Success: false,
		Message: msg,
		Action:  models.FallbackManual,
		NextSteps: []string{
			"Rephrase the command with a concrete verb, e.g. \"open\", \"search\", \"remind\"",
			"Break the request into smaller steps and try them one at a time",
		},
	}
}

func (r *Resolver) unsupported(reason string) *models.FallbackResponse {
	msg := "no fallback reason was given"
	if reason != "" {
		msg = fmt.Sprintf("unsupported fallback reason %q", reason)
	}
	return &models.FallbackResponse{
		Success:   false,
		Message:   msg,
		Action:    models.FallbackManual,
		NextSteps: []string{"Complete the action manually"},
	}
}

func platformOf(d models.FallbackDetails) string {
	if d.Platform != "" {
		return strings.ToLower(d.Platform)
	}
	return runtime.GOOS
}

func appSlug(app string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(app)), " ", "-")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
