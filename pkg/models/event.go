package models

import "time"

// EventType identifies a pipeline event on the SSE stream.
type EventType string

const (
	EventScreenSnapshot  EventType = "screen_snapshot"
	EventAudioSession    EventType = "audio_session"
	EventContextSnapshot EventType = "context_snapshot"
	EventTrigger         EventType = "trigger"
	EventCommandResult   EventType = "command_result"
	EventConfigUpdated   EventType = "config_updated"
)

// Event is one envelope on the event stream. Data holds the typed payload
// for the event type (snapshot, session, trigger, result).
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}
