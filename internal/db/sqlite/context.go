package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/thebtf/aura/pkg/models"
)

// ContextStore persists fused context snapshots and fired triggers.
// Snapshots are stored flattened; nested signal objects are rebuilt with the
// fields the row retains.
type ContextStore struct {
	store   *Store
	maxRows int
}

// NewContextStore creates a context store. maxRows <= 0 selects DefaultMaxRows.
func NewContextStore(store *Store, maxRows int) *ContextStore {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &ContextStore{store: store, maxRows: maxRows}
}

// InsertSnapshot persists a fused snapshot and trims rows beyond the retention cap.
func (s *ContextStore) InsertSnapshot(ctx context.Context, snap *models.ContextSnapshot) (int64, error) {
	var screenText, audioTranscript, intentCommand string
	if snap.ScreenSnapshot != nil {
		screenText = snap.ScreenSnapshot.ExtractedText
	}
	if snap.AudioSession != nil {
		audioTranscript = snap.AudioSession.Transcript
	}
	if snap.UserIntent != nil {
		intentCommand = snap.UserIntent.RawCommand
	}

	capturedAt := snap.Timestamp
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	const query = `
		INSERT INTO context_snapshots
		(app_name, screen_text, audio_transcript, intent_command, captured_at, captured_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.store.ExecContext(ctx, query,
		snap.AppName, nullString(screenText), nullString(audioTranscript), nullString(intentCommand),
		capturedAt.Format(time.RFC3339), capturedAt.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}

	id, _ := result.LastInsertId()
	_, _ = s.cleanupOldRows(ctx, "context_snapshots", "captured_at_epoch")
	return id, nil
}

// RecentSnapshots returns the most recent fused snapshots, newest first.
func (s *ContextStore) RecentSnapshots(ctx context.Context, limit int) ([]models.ContextSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, app_name, screen_text, audio_transcript, intent_command, captured_at_epoch
		FROM context_snapshots
		ORDER BY captured_at_epoch DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanContextRows(rows)
}

// SearchText performs substring search across all fused signal columns,
// newest match first.
func (s *ContextStore) SearchText(ctx context.Context, query string, limit int) ([]models.ContextSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + strings.TrimSpace(query) + "%"

	const searchQuery = `
		SELECT id, app_name, screen_text, audio_transcript, intent_command, captured_at_epoch
		FROM context_snapshots
		WHERE app_name LIKE ?
			OR COALESCE(screen_text, '') LIKE ?
			OR COALESCE(audio_transcript, '') LIKE ?
			OR COALESCE(intent_command, '') LIKE ?
		ORDER BY captured_at_epoch DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, searchQuery, pattern, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanContextRows(rows)
}

// scanContextRows scans fused snapshots from raw SQL rows, rebuilding the
// nested signal objects from the flattened columns.
func scanContextRows(rows *sql.Rows) ([]models.ContextSnapshot, error) {
	var snapshots []models.ContextSnapshot
	for rows.Next() {
		var snap models.ContextSnapshot
		var screenText, audioTranscript, intentCommand sql.NullString
		var epoch int64
		if err := rows.Scan(
			&snap.ID, &snap.AppName, &screenText, &audioTranscript, &intentCommand, &epoch,
		); err != nil {
			return nil, err
		}
		snap.Timestamp = time.UnixMilli(epoch)
		if screenText.Valid {
			snap.ScreenSnapshot = &models.ScreenSnapshot{
				AppName:       snap.AppName,
				ExtractedText: screenText.String,
				CapturedAt:    snap.Timestamp,
			}
		}
		if audioTranscript.Valid {
			snap.AudioSession = &models.AudioSession{
				Transcript: audioTranscript.String,
				IsFinal:    true,
			}
		}
		if intentCommand.Valid {
			snap.UserIntent = &models.Intent{RawCommand: intentCommand.String}
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// InsertTrigger persists a fired trigger and trims rows beyond the retention cap.
func (s *ContextStore) InsertTrigger(ctx context.Context, trigger *models.Trigger) (int64, error) {
	var appName string
	if trigger.Snapshot != nil {
		appName = trigger.Snapshot.AppName
	}

	firedAt := trigger.FiredAt
	if firedAt.IsZero() {
		firedAt = time.Now()
	}

	const query = `
		INSERT INTO triggers
		(trigger_id, pattern_name, actions, app_name, fired_at, fired_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.store.ExecContext(ctx, query,
		trigger.ID, trigger.PatternName, models.JSONStringArray(trigger.Actions), appName,
		firedAt.Format(time.RFC3339), firedAt.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}

	id, _ := result.LastInsertId()
	_, _ = s.cleanupOldRows(ctx, "triggers", "fired_at_epoch")
	return id, nil
}

// RecentTriggers returns the most recently fired triggers, newest first.
func (s *ContextStore) RecentTriggers(ctx context.Context, limit int) ([]models.Trigger, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT trigger_id, pattern_name, actions, app_name, fired_at_epoch
		FROM triggers
		ORDER BY fired_at_epoch DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []models.Trigger
	for rows.Next() {
		var trigger models.Trigger
		var actions models.JSONStringArray
		var appName string
		var epoch int64
		if err := rows.Scan(
			&trigger.ID, &trigger.PatternName, &actions, &appName, &epoch,
		); err != nil {
			return nil, err
		}
		trigger.Actions = []string(actions)
		trigger.FiredAt = time.UnixMilli(epoch)
		if appName != "" {
			trigger.Snapshot = &models.ContextSnapshot{AppName: appName, Timestamp: trigger.FiredAt}
		}
		triggers = append(triggers, trigger)
	}
	return triggers, rows.Err()
}

// cleanupOldRows deletes rows beyond the retention cap, keeping the newest
// maxRows ordered by the given epoch column. Table and column names come from
// the two call sites above, never from input.
func (s *ContextStore) cleanupOldRows(ctx context.Context, table, epochColumn string) (int64, error) {
	query := `
		DELETE FROM ` + table + `
		WHERE id NOT IN (
			SELECT id FROM ` + table + `
			ORDER BY ` + epochColumn + ` DESC
			LIMIT ?
		)
	`

	result, err := s.store.ExecContext(ctx, query, s.maxRows)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
