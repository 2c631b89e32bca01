package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB opens a temporary SQLite database for a test.
func testDB(t *testing.T) (*sql.DB, string, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "sqlite_test_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=ON")
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, dbPath, cleanup
}

// createBaseTables creates the schema the raw stores expect. The DDL mirrors
// what the GORM migrations produce, including the history FTS index and its
// sync triggers.
func createBaseTables(t *testing.T, db *sql.DB) {
	t.Helper()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS screen_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			app_name TEXT NOT NULL,
			window_title TEXT,
			extracted_text TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			captured_at TEXT NOT NULL,
			captured_at_epoch INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audio_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_name TEXT NOT NULL,
			transcript TEXT NOT NULL,
			started_at TEXT NOT NULL,
			started_at_epoch INTEGER NOT NULL,
			ended_at TEXT NOT NULL,
			ended_at_epoch INTEGER NOT NULL,
			duration_ms INTEGER DEFAULT 0,
			is_final INTEGER DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS context_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			app_name TEXT,
			screen_text TEXT,
			audio_transcript TEXT,
			intent_command TEXT,
			captured_at TEXT NOT NULL,
			captured_at_epoch INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS triggers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trigger_id TEXT NOT NULL UNIQUE,
			pattern_name TEXT NOT NULL,
			actions TEXT,
			app_name TEXT,
			fired_at TEXT NOT NULL,
			fired_at_epoch INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS command_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			command TEXT NOT NULL,
			success INTEGER DEFAULT 0,
			result_summary TEXT,
			executed_at TEXT NOT NULL,
			executed_at_epoch INTEGER NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS command_history_fts USING fts5(
			command,
			content='command_history',
			content_rowid='id'
		)`,
		`CREATE TRIGGER IF NOT EXISTS command_history_ai AFTER INSERT ON command_history BEGIN
			INSERT INTO command_history_fts(rowid, command)
			VALUES (new.id, new.command);
		END`,
		`CREATE TRIGGER IF NOT EXISTS command_history_ad AFTER DELETE ON command_history BEGIN
			INSERT INTO command_history_fts(command_history_fts, rowid, command)
			VALUES('delete', old.id, old.command);
		END`,
		`CREATE TRIGGER IF NOT EXISTS command_history_au AFTER UPDATE ON command_history BEGIN
			INSERT INTO command_history_fts(command_history_fts, rowid, command)
			VALUES('delete', old.id, old.command);
			INSERT INTO command_history_fts(rowid, command)
			VALUES (new.id, new.command);
		END`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
}

// seedHistory inserts a history row with an explicit epoch for ordering tests.
func seedHistory(t *testing.T, store *HistoryStore, command string, success bool, at time.Time) {
	t.Helper()

	const query = `
		INSERT INTO command_history
		(command, success, result_summary, executed_at, executed_at_epoch)
		VALUES (?, ?, NULL, ?, ?)
	`
	_, err := store.store.ExecContext(context.Background(), query,
		command, boolToInt(success), at.Format(time.RFC3339), at.UnixMilli())
	if err != nil {
		t.Fatalf("seed history: %v", err)
	}
}
