package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/thebtf/aura/pkg/models"
)

// DefaultMaxRows caps retained rows per perception table when the configured
// limit is zero.
const DefaultMaxRows = 500

// CleanupFunc is a callback for when retained rows are trimmed.
// Receives the IDs of deleted rows for downstream cleanup.
type CleanupFunc func(ctx context.Context, deletedIDs []int64)

// ScreenStore persists screen snapshots with a retention cap.
type ScreenStore struct {
	store       *Store
	maxRows     int
	cleanupFunc CleanupFunc
}

// NewScreenStore creates a screen snapshot store. maxRows <= 0 selects
// DefaultMaxRows.
func NewScreenStore(store *Store, maxRows int) *ScreenStore {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &ScreenStore{store: store, maxRows: maxRows}
}

// SetCleanupFunc sets the callback for when old snapshots are trimmed.
func (s *ScreenStore) SetCleanupFunc(fn CleanupFunc) {
	s.cleanupFunc = fn
}

// InsertSnapshot persists a snapshot and trims rows beyond the retention cap.
func (s *ScreenStore) InsertSnapshot(ctx context.Context, snap *models.ScreenSnapshot) (int64, error) {
	capturedAt := snap.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	const query = `
		INSERT INTO screen_snapshots
		(app_name, window_title, extracted_text, content_hash, captured_at, captured_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.store.ExecContext(ctx, query,
		snap.AppName, nullString(snap.WindowTitle), snap.ExtractedText, snap.ContentHash,
		capturedAt.Format(time.RFC3339), capturedAt.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}

	id, _ := result.LastInsertId()

	// Trim rows beyond the retention cap
	deletedIDs, _ := s.CleanupOldSnapshots(ctx)
	if len(deletedIDs) > 0 && s.cleanupFunc != nil {
		s.cleanupFunc(ctx, deletedIDs)
	}

	return id, nil
}

// CleanupOldSnapshots deletes snapshots beyond the retention cap.
// Keeps the most recent maxRows snapshots and returns the IDs of deleted rows.
func (s *ScreenStore) CleanupOldSnapshots(ctx context.Context) ([]int64, error) {
	// Collect the doomed IDs before deleting; callers need them to purge
	// dependent rows.
	const selectQuery = `
		SELECT id FROM screen_snapshots
		WHERE id NOT IN (
			SELECT id FROM screen_snapshots
			ORDER BY captured_at_epoch DESC
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
		DELETE FROM screen_snapshots
		WHERE id NOT IN (
			SELECT id FROM screen_snapshots
			ORDER BY captured_at_epoch DESC
			LIMIT ?
		)
	`

	_, err = s.store.ExecContext(ctx, deleteQuery, s.maxRows)
	if err != nil {
		return nil, err
	}

	return toDelete, nil
}

// RecentSnapshots returns the most recent snapshots, newest first.
func (s *ScreenStore) RecentSnapshots(ctx context.Context, limit int) ([]models.ScreenSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, app_name, COALESCE(window_title, ''), extracted_text, content_hash, captured_at_epoch
		FROM screen_snapshots
		ORDER BY captured_at_epoch DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSnapshotRows(rows)
}

// SearchText performs substring search over captured screen text, newest
// match first. The app name and window title are searched too so "Slack"
// finds snapshots regardless of what was on screen.
func (s *ScreenStore) SearchText(ctx context.Context, query string, limit int) ([]models.ScreenSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + strings.TrimSpace(query) + "%"

	const searchQuery = `
		SELECT id, app_name, COALESCE(window_title, ''), extracted_text, content_hash, captured_at_epoch
		FROM screen_snapshots
		WHERE extracted_text LIKE ? OR app_name LIKE ? OR COALESCE(window_title, '') LIKE ?
		ORDER BY captured_at_epoch DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, searchQuery, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSnapshotRows(rows)
}

// scanSnapshotRows scans screen snapshots from raw SQL rows.
func scanSnapshotRows(rows *sql.Rows) ([]models.ScreenSnapshot, error) {
	var snapshots []models.ScreenSnapshot
	for rows.Next() {
		var snap models.ScreenSnapshot
		var epoch int64
		if err := rows.Scan(
			&snap.ID, &snap.AppName, &snap.WindowTitle, &snap.ExtractedText, &snap.ContentHash, &epoch,
		); err != nil {
			return nil, err
		}
		snap.CapturedAt = time.UnixMilli(epoch)
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
