package models

import "time"

// CommandHistoryEntry records one executed (or attempted) command.
// The history is append-only and feeds suggestion ranking.
type CommandHistoryEntry struct {
	ID            int64     `json:"id,omitempty" db:"id"`
	Command       string    `json:"command" db:"command"`
	Success       bool      `json:"success" db:"success"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	ResultSummary string    `json:"result_summary,omitempty" db:"result_summary"`
}

// CommandCount is a command with its execution count, ordered most-frequent
// first when returned in lists.
type CommandCount struct {
	Command string `json:"command" db:"command"`
	Count   int    `json:"count" db:"count"`
}
