package memory

import (
	"database/sql"
	"fmt"
)

// checkRowsErr reports an error that ended a rows.Next loop early.
func checkRowsErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}
	return nil
}

// Column helpers. An empty description and a missing due date are stored as
// NULL so the board can tell "unset" from a zero value.

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullText(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func textPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// boolInt maps a flag to SQLite's 0/1 integer.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
