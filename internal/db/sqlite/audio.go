package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/thebtf/aura/pkg/models"
)

// AudioStore persists sealed audio sessions with a retention cap.
type AudioStore struct {
	store       *Store
	maxRows     int
	cleanupFunc CleanupFunc
}

// NewAudioStore creates an audio session store. maxRows <= 0 selects
// DefaultMaxRows.
func NewAudioStore(store *Store, maxRows int) *AudioStore {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &AudioStore{store: store, maxRows: maxRows}
}

// SetCleanupFunc sets the callback for when old sessions are trimmed.
func (s *AudioStore) SetCleanupFunc(fn CleanupFunc) {
	s.cleanupFunc = fn
}

// InsertSession persists a sealed session and trims rows beyond the retention cap.
func (s *AudioStore) InsertSession(ctx context.Context, session *models.AudioSession) (int64, error) {
	startedAt := session.StartTime
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	endedAt := session.EndTime
	if endedAt.IsZero() {
		endedAt = startedAt
	}

	const query = `
		INSERT INTO audio_sessions
		(source_name, transcript, started_at, started_at_epoch, ended_at, ended_at_epoch, duration_ms, is_final)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.store.ExecContext(ctx, query,
		session.SourceName, session.Transcript,
		startedAt.Format(time.RFC3339), startedAt.UnixMilli(),
		endedAt.Format(time.RFC3339), endedAt.UnixMilli(),
		endedAt.Sub(startedAt).Milliseconds(), boolToInt(session.IsFinal),
	)
	if err != nil {
		return 0, err
	}

	id, _ := result.LastInsertId()

	// Trim rows beyond the retention cap
	deletedIDs, _ := s.CleanupOldSessions(ctx)
	if len(deletedIDs) > 0 && s.cleanupFunc != nil {
		s.cleanupFunc(ctx, deletedIDs)
	}

	return id, nil
}

// CleanupOldSessions deletes sessions beyond the retention cap.
// Keeps the most recent maxRows sessions and returns the IDs of deleted rows.
func (s *AudioStore) CleanupOldSessions(ctx context.Context) ([]int64, error) {
	// Collect the doomed IDs before deleting; callers need them to purge
	// dependent rows.
	const selectQuery = `
		SELECT id FROM audio_sessions
		WHERE id NOT IN (
			SELECT id FROM audio_sessions
			ORDER BY started_at_epoch DESC
			LIMIT ?
		)
	`

	rows, err := s.store.QueryContext(ctx, selectQuery, s.maxRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var toDelete []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		toDelete = append(toDelete, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(toDelete) == 0 {
		return nil, nil
	}

	const deleteQuery = `
		DELETE FROM audio_sessions
		WHERE id NOT IN (
			SELECT id FROM audio_sessions
			ORDER BY started_at_epoch DESC
			LIMIT ?
		)
	`

	_, err = s.store.ExecContext(ctx, deleteQuery, s.maxRows)
	if err != nil {
		return nil, err
	}

	return toDelete, nil
}

// RecentSessions returns the most recently started sessions, newest first.
func (s *AudioStore) RecentSessions(ctx context.Context, limit int) ([]models.AudioSession, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, source_name, transcript, started_at_epoch, ended_at_epoch, is_final
		FROM audio_sessions
		ORDER BY started_at_epoch DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessionRows(rows)
}

// SearchText performs substring search over sealed transcripts, newest
// match first.
func (s *AudioStore) SearchText(ctx context.Context, query string, limit int) ([]models.AudioSession, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + strings.TrimSpace(query) + "%"

	const searchQuery = `
		SELECT id, source_name, transcript, started_at_epoch, ended_at_epoch, is_final
		FROM audio_sessions
		WHERE transcript LIKE ? OR source_name LIKE ?
		ORDER BY started_at_epoch DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, searchQuery, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessionRows(rows)
}

// scanSessionRows scans audio sessions from raw SQL rows.
func scanSessionRows(rows *sql.Rows) ([]models.AudioSession, error) {
	var sessions []models.AudioSession
	for rows.Next() {
		var session models.AudioSession
		var startedEpoch, endedEpoch int64
		var isFinal int
		if err := rows.Scan(
			&session.ID, &session.SourceName, &session.Transcript, &startedEpoch, &endedEpoch, &isFinal,
		); err != nil {
			return nil, err
		}
		session.StartTime = time.UnixMilli(startedEpoch)
		session.EndTime = time.UnixMilli(endedEpoch)
		session.IsFinal = isFinal != 0
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
