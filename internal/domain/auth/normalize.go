package auth

import (
	"database/sql"
	"strings"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeUsername lowercases so lookups by recipient handle match the unique index.
func normalizeUsername(username string) sql.NullString {
	return optional(strings.ToLower(username))
}

func optional(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
