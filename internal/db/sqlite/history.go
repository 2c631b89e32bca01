package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/thebtf/aura/pkg/models"
	"github.com/thebtf/aura/pkg/similarity"
)

// HistoryStore persists the append-only command history and serves the
// FTS5-backed lookups behind command suggestions.
type HistoryStore struct {
	store *Store
}

// NewHistoryStore creates a command history store.
func NewHistoryStore(store *Store) *HistoryStore {
	return &HistoryStore{store: store}
}

// Append records one executed (or attempted) command. History is append-only;
// rows are never updated.
func (s *HistoryStore) Append(ctx context.Context, entry *models.CommandHistoryEntry) error {
	executedAt := entry.Timestamp
	if executedAt.IsZero() {
		executedAt = time.Now()
	}

	const query = `
		INSERT INTO command_history
		(command, success, result_summary, executed_at, executed_at_epoch)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.store.ExecContext(ctx, query,
		entry.Command, boolToInt(entry.Success), nullString(entry.ResultSummary),
		executedAt.Format(time.RFC3339), executedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}

	entry.ID, _ = result.LastInsertId()
	return nil
}

// Recent returns the most recent entries, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]models.CommandHistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, command, success, COALESCE(result_summary, ''), executed_at_epoch
		FROM command_history
		ORDER BY executed_at_epoch DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

// Search performs full-text search over past commands using FTS5.
// Query terms are prefix-matched so a partial command finds its completions.
// Falls back to LIKE search if FTS5 fails or matches nothing.
func (s *HistoryStore) Search(ctx context.Context, query string, limit int) ([]models.CommandHistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	terms := termList(query)
	if len(terms) == 0 {
		return s.searchLike(ctx, query, limit)
	}

	// Build FTS5 prefix query: term1* OR term2*
	ftsTerms := strings.Join(terms, "* OR ") + "*"

	const ftsQuery = `
		SELECT h.id, h.command, h.success, COALESCE(h.result_summary, ''), h.executed_at_epoch
		FROM command_history h
		JOIN command_history_fts fts ON h.id = fts.rowid
		WHERE command_history_fts MATCH ?
		ORDER BY rank, h.executed_at_epoch DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, ftsQuery, ftsTerms, limit)
	if err != nil {
		// The virtual table is missing on builds without the fts5 tag.
		return s.searchLike(ctx, query, limit)
	}
	defer rows.Close()

	entries, err := scanHistoryRows(rows)
	if err != nil {
		return nil, err
	}

	// An empty FTS result still gets the LIKE pass; prefix matching misses
	// mid-word hits.
	if len(entries) == 0 {
		return s.searchLike(ctx, query, limit)
	}

	return entries, nil
}

// searchLike performs fallback substring search over past commands.
func (s *HistoryStore) searchLike(ctx context.Context, query string, limit int) ([]models.CommandHistoryEntry, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"

	const likeQuery = `
		SELECT id, command, success, COALESCE(result_summary, ''), executed_at_epoch
		FROM command_history
		WHERE command LIKE ?
		ORDER BY executed_at_epoch DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, likeQuery, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

// Frequencies returns distinct commands ordered by how often they ran,
// most frequent first with recency as the tie-break.
func (s *HistoryStore) Frequencies(ctx context.Context, limit int) ([]models.CommandCount, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `
		SELECT command, COUNT(*) AS uses
		FROM command_history
		GROUP BY command
		ORDER BY uses DESC, MAX(executed_at_epoch) DESC
		LIMIT ?
	`

	rows, err := s.store.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.CommandCount
	for rows.Next() {
		var count models.CommandCount
		if err := rows.Scan(&count.Command, &count.Count); err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

// termList extracts searchable terms from a query in stable order.
func termList(query string) []string {
	terms := make([]string, 0, 4)
	for term := range similarity.ExtractTerms(query) {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// scanHistoryRows scans history entries from raw SQL rows.
func scanHistoryRows(rows *sql.Rows) ([]models.CommandHistoryEntry, error) {
	var entries []models.CommandHistoryEntry
	for rows.Next() {
		var entry models.CommandHistoryEntry
		var success int
		var epoch int64
		if err := rows.Scan(&entry.ID, &entry.Command, &success, &entry.ResultSummary, &epoch); err != nil {
			return nil, err
		}
		entry.Success = success != 0
		entry.Timestamp = time.UnixMilli(epoch)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
