package gorm

import (
	"database/sql"
	"net/http"
	"strconv"
)

// ParseLimitParam reads the "limit" query parameter, falling back to
// defaultLimit when it is absent, malformed, or non-positive.
func ParseLimitParam(r *http.Request, defaultLimit int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return defaultLimit
	}
	return parsed
}

// sqlNullString maps "" to NULL so optional columns stay queryable with
// IS NULL.
func sqlNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// boolToInt converts to the 0/1 integers SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
