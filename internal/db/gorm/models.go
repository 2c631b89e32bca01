package gorm

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/aura/pkg/models"
)

// Note: models.JSONStringArray implements sql.Scanner and driver.Valuer, so
// list-valued columns are stored as JSON text.

// ScreenSnapshot is one persisted screen capture.
type ScreenSnapshot struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	AppName         string `gorm:"index;not null"`
	WindowTitle     sql.NullString
	ExtractedText   string `gorm:"type:text;not null"`
	ContentHash     string `gorm:"index;not null"`
	CapturedAt      string `gorm:"not null"`
	CapturedAtEpoch int64  `gorm:"index:idx_screen_captured,sort:desc;not null"`
}

func (ScreenSnapshot) TableName() string { return "screen_snapshots" }

// BeforeCreate fills any timestamp the caller left zero.
func (s *ScreenSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.CapturedAtEpoch == 0 {
		s.CapturedAtEpoch = time.Now().UnixMilli()
	}
	if s.CapturedAt == "" {
		s.CapturedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// AudioSession is one persisted sealed utterance.
type AudioSession struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	SourceName     string `gorm:"index;not null"`
	Transcript     string `gorm:"type:text;not null"`
	StartedAt      string `gorm:"not null"`
	StartedAtEpoch int64  `gorm:"index:idx_audio_started,sort:desc;not null"`
	EndedAt        string `gorm:"not null"`
	EndedAtEpoch   int64  `gorm:"not null"`
	DurationMs     int64  `gorm:"default:0"`
	IsFinal        int    `gorm:"default:1"`
}

func (AudioSession) TableName() string { return "audio_sessions" }

// BeforeCreate fills any timestamp the caller left zero.
func (a *AudioSession) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if a.StartedAtEpoch == 0 {
		a.StartedAtEpoch = now.UnixMilli()
	}
	if a.StartedAt == "" {
		a.StartedAt = now.Format(time.RFC3339)
	}
	if a.EndedAtEpoch == 0 {
		a.EndedAtEpoch = a.StartedAtEpoch
	}
	if a.EndedAt == "" {
		a.EndedAt = a.StartedAt
	}
	return nil
}

// ContextSnapshot is one persisted fused context state.
type ContextSnapshot struct {
	ID              int64          `gorm:"primaryKey;autoIncrement"`
	AppName         string         `gorm:"index"`
	ScreenText      sql.NullString `gorm:"type:text"`
	AudioTranscript sql.NullString `gorm:"type:text"`
	IntentCommand   sql.NullString
	CapturedAt      string `gorm:"not null"`
	CapturedAtEpoch int64  `gorm:"index:idx_context_captured,sort:desc;not null"`
}

func (ContextSnapshot) TableName() string { return "context_snapshots" }

// BeforeCreate fills any timestamp the caller left zero.
func (c *ContextSnapshot) BeforeCreate(tx *gorm.DB) error {
	if c.CapturedAtEpoch == 0 {
		c.CapturedAtEpoch = time.Now().UnixMilli()
	}
	if c.CapturedAt == "" {
		c.CapturedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// Trigger is one persisted pattern firing.
type Trigger struct {
	ID           int64                  `gorm:"primaryKey;autoIncrement"`
	TriggerID    string                 `gorm:"uniqueIndex;not null"`
	PatternName  string                 `gorm:"index;not null"`
	Actions      models.JSONStringArray `gorm:"type:text"`
	AppName      string                 `gorm:"index"`
	FiredAt      string                 `gorm:"not null"`
	FiredAtEpoch int64                  `gorm:"index:idx_triggers_fired,sort:desc;not null"`
}

func (Trigger) TableName() string { return "triggers" }

// BeforeCreate fills any timestamp the caller left zero.
func (t *Trigger) BeforeCreate(tx *gorm.DB) error {
	if t.FiredAtEpoch == 0 {
		t.FiredAtEpoch = time.Now().UnixMilli()
	}
	if t.FiredAt == "" {
		t.FiredAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// CommandHistory is one executed (or attempted) command.
type CommandHistory struct {
	ID              int64          `gorm:"primaryKey;autoIncrement"`
	Command         string         `gorm:"type:text;not null"`
	Success         int            `gorm:"default:0"`
	ResultSummary   sql.NullString `gorm:"type:text"`
	ExecutedAt      string         `gorm:"not null"`
	ExecutedAtEpoch int64          `gorm:"index:idx_history_executed,sort:desc;not null"`
}

func (CommandHistory) TableName() string { return "command_history" }

// BeforeCreate fills any timestamp the caller left zero.
func (c *CommandHistory) BeforeCreate(tx *gorm.DB) error {
	if c.ExecutedAtEpoch == 0 {
		c.ExecutedAtEpoch = time.Now().UnixMilli()
	}
	if c.ExecutedAt == "" {
		c.ExecutedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// AppFilter is one persisted application capture rule.
type AppFilter struct {
	ID             int64                  `gorm:"primaryKey;autoIncrement"`
	AppName        string                 `gorm:"uniqueIndex;not null"`
	Whitelisted    int                    `gorm:"default:0"`
	Blacklisted    int                    `gorm:"default:0"`
	WindowPatterns models.JSONStringArray `gorm:"type:text"`
	UpdatedAt      string                 `gorm:"not null"`
}

func (AppFilter) TableName() string { return "app_filters" }

// BeforeCreate fills any timestamp the caller left zero.
func (f *AppFilter) BeforeCreate(tx *gorm.DB) error {
	if f.UpdatedAt == "" {
		f.UpdatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// AudioFilter is one persisted audio source capture rule.
type AudioFilter struct {
	ID              int64                  `gorm:"primaryKey;autoIncrement"`
	SourceName      string                 `gorm:"uniqueIndex;not null"`
	Whitelisted     int                    `gorm:"default:0"`
	Blacklisted     int                    `gorm:"default:0"`
	VolumeThreshold float64                `gorm:"type:real;default:0;check:volume_threshold >= 0 AND volume_threshold <= 1"`
	Keywords        models.JSONStringArray `gorm:"type:text"`
	UpdatedAt       string                 `gorm:"not null"`
}

func (AudioFilter) TableName() string { return "audio_filters" }

// BeforeCreate fills any timestamp the caller left zero.
func (f *AudioFilter) BeforeCreate(tx *gorm.DB) error {
	if f.UpdatedAt == "" {
		f.UpdatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// ContextPattern is one persisted trigger rule.
type ContextPattern struct {
	ID             int64                  `gorm:"primaryKey;autoIncrement"`
	PatternName    string                 `gorm:"uniqueIndex;not null"`
	AppName        string                 `gorm:"index"`
	WindowPattern  sql.NullString
	AudioKeywords  models.JSONStringArray `gorm:"type:text"`
	ScreenKeywords models.JSONStringArray `gorm:"type:text"`
	TriggerActions models.JSONStringArray `gorm:"type:text"`
	IsActive       int                    `gorm:"default:1;index"`
	UpdatedAt      string                 `gorm:"not null"`
}

func (ContextPattern) TableName() string { return "context_patterns" }

// BeforeCreate fills any timestamp the caller left zero.
func (p *ContextPattern) BeforeCreate(tx *gorm.DB) error {
	if p.UpdatedAt == "" {
		p.UpdatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}
