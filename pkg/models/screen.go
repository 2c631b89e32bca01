package models

import "time"

// Frame is one raw capture of the foreground window, pushed by a platform
// shell or produced by a capture driver. Either Text (pre-extracted by the
// shell) or Image (raw pixels for an OCR extractor) may be set.
type Frame struct {
	AppName     string    `json:"app_name"`
	WindowTitle string    `json:"window_title"`
	Text        string    `json:"text,omitempty"`
	Image       []byte    `json:"image,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

// ScreenSnapshot is the extracted, filtered view of the foreground window at
// one sampling tick. Immutable once created; a newer snapshot for the same
// app supersedes it.
type ScreenSnapshot struct {
	ID            int64     `json:"id,omitempty" db:"id"`
	AppName       string    `json:"app_name" db:"app_name"`
	WindowTitle   string    `json:"window_title" db:"window_title"`
	ExtractedText string    `json:"extracted_text" db:"extracted_text"`
	ContentHash   string    `json:"content_hash" db:"content_hash"`
	CapturedAt    time.Time `json:"captured_at" db:"captured_at"`
}
