package sqlite

import "database/sql"

// nullString stores an empty string as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// boolToInt converts a bool to the 0/1 convention used by the schema.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
