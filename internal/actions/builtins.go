package actions

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/pkg/models"
)

func (r *Registry) registerBuiltins() {
	builtins := map[string]HandlerFunc{
		"open_app":       r.openApp,
		"open_url":       r.openURL,
		"web_search":     r.webSearch,
		"compose_email":  r.composeEmail,
		"play_music":     r.playMusic,
		"take_note":      takeNote,
		"remind":         remind,
		"schedule_event": scheduleEvent,
	}
	for name, h := range builtins {
		r.handlers[name] = h
	}
}

func (r *Registry) openApp(ctx context.Context, intent *models.Intent) *Result {
	app := strings.TrimSpace(intent.ExtractedArgs["app"])
	if app == "" {
		return &Result{Success: false, Message: "no application name given"}
	}

	if err := r.launch(ctx, app, true); err != nil {
		log.Warn().Err(err).Str("app", app).Msg("failed to launch application")
		return &Result{
			Success: false,
			Message: fmt.Sprintf("could not launch %s", app),
			Obstacle: &models.FallbackRequest{
				Reason:  models.ReasonMissingApp,
				Details: models.FallbackDetails{AppName: app},
			},
		}
	}
	return &Result{Success: true, Message: fmt.Sprintf("opening %s", app)}
}

func (r *Registry) openURL(ctx context.Context, intent *models.Intent) *Result {
	raw := strings.TrimSpace(intent.ExtractedArgs["url"])
	if raw == "" {
		return &Result{Success: false, Message: "no URL given"}
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "mailto") {
		return &Result{Success: false, Message: fmt.Sprintf("unsupported URL %q", raw)}
	}

	if err := r.launch(ctx, raw, false); err != nil {
		log.Warn().Err(err).Str("url", raw).Msg("failed to open URL")
		return &Result{
			Success:   false,
			Message:   "could not open the URL in a browser",
			NextSteps: []string{raw},
		}
	}
	return &Result{Success: true, Message: fmt.Sprintf("opening %s", raw)}
}

func (r *Registry) webSearch(ctx context.Context, intent *models.Intent) *Result {
	query := strings.TrimSpace(intent.ExtractedArgs["query"])
	if query == "" {
		return &Result{Success: false, Message: "nothing to search for"}
	}

	searchURL := "https://www.google.com/search?q=" + url.QueryEscape(query)
	if err := r.launch(ctx, searchURL, false); err != nil {
		log.Warn().Err(err).Str("query", query).Msg("failed to open search")
		return &Result{
			Success:   false,
			Message:   "could not open the browser; search manually",
			NextSteps: []string{searchURL},
		}
	}
	return &Result{
		Success:   true,
		Message:   fmt.Sprintf("searching the web for %q", query),
		NextSteps: []string{searchURL},
	}
}

func (r *Registry) composeEmail(ctx context.Context, intent *models.Intent) *Result {
	to := strings.TrimSpace(intent.ExtractedArgs["to"])
	subject := strings.TrimSpace(intent.ExtractedArgs["subject"])

	mailto := "mailto:" + url.PathEscape(to)
	if subject != "" {
		mailto += "?subject=" + url.QueryEscape(subject)
	}

	if err := r.launch(ctx, mailto, false); err != nil {
		log.Warn().Err(err).Msg("failed to open mail client")
		return &Result{
			Success:   false,
			Message:   "could not open the mail client",
			NextSteps: []string{mailto},
		}
	}
	msg := "composing an email"
	if to != "" {
		msg = fmt.Sprintf("composing an email to %s", to)
	}
	return &Result{Success: true, Message: msg}
}

func (r *Registry) playMusic(ctx context.Context, intent *models.Intent) *Result {
	service := strings.TrimSpace(intent.ExtractedArgs["service"])
	if service == "" {
		service = "https://open.spotify.com"
	}

	if err := r.launch(ctx, service, false); err != nil {
		log.Warn().Err(err).Msg("failed to open music service")
		return &Result{
			Success:   false,
			Message:   "could not open the music service",
			NextSteps: []string{service},
		}
	}
	return &Result{Success: true, Message: "starting music"}
}

func takeNote(_ context.Context, intent *models.Intent) *Result {
	text := strings.TrimSpace(intent.ExtractedArgs["text"])
	if text == "" {
		return &Result{Success: false, Message: "nothing to note"}
	}
	log.Info().Str("note", text).Msg("note taken")
	return &Result{Success: true, Message: fmt.Sprintf("noted: %s", text)}
}

func remind(_ context.Context, intent *models.Intent) *Result {
	message := strings.TrimSpace(intent.ExtractedArgs["message"])
	if message == "" {
		return &Result{Success: false, Message: "nothing to remind about"}
	}
	log.Info().Str("reminder", message).Msg("reminder noted")
	return &Result{Success: true, Message: fmt.Sprintf("reminder noted: %s", message)}
}

// scheduleEvent has no local automation yet; it reports the obstacle so the
// resolver can propose a scripted path.
func scheduleEvent(_ context.Context, intent *models.Intent) *Result {
	return &Result{
		Success: false,
		Message: "scheduling needs a custom automation",
		Obstacle: &models.FallbackRequest{
			Reason:  models.ReasonMissingScript,
			Details: models.FallbackDetails{ActionText: intent.RawCommand},
		},
	}
}
