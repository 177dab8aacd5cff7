// Package sqlutil holds row-scanning and statement-classification helpers
// shared by the relational drivers.
package sqlutil

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/quarkdata/mcp-dbgate/pkg/driver"
)

// rowReturningVerbs are the statement verbs that produce a row set.
// Anything else goes through Exec and reports rows_affected instead.
var rowReturningVerbs = []string{"SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH", "VALUES"}

// IsRowReturning reports whether a statement should be executed with Query
// rather than Exec. Leading comments and whitespace are skipped before the
// first keyword is examined, so multi-line statements classify the same as
// single-line ones.
func IsRowReturning(statement string) bool {
	verb := leadingVerb(statement)
	for _, v := range rowReturningVerbs {
		if verb == v {
			return true
		}
	}
	return false
}

// leadingVerb returns the first keyword of a statement, upper-cased, after
// skipping whitespace, line comments, and block comments.
func leadingVerb(statement string) string {
	s := statement
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = s[i+2:]
		default:
			end := 0
			for end < len(s) && isLetter(s[end]) {
				end++
			}
			return strings.ToUpper(s[:end])
		}
	}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// CollectRows drains a row set into a normalized result, capping output at
// maxRows. When the cap is hit the result carries a truncated extra and the
// remaining rows are not read.
func CollectRows(rows *sql.Rows, maxRows int) (*driver.Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := driver.NewResult()
	truncated := false

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			truncated = true
			break
		}

		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(driver.Row, len(cols))
		for i, c := range cols {
			row[c] = NormalizeValue(vals[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	if truncated {
		result.AddExtra("truncated", true)
		result.AddExtra("max_rows", maxRows)
	}
	return result, nil
}

// NormalizeValue converts driver-level scan values into JSON-friendly types.
// []byte becomes string since both lib/pq and go-sql-driver return text
// columns as byte slices.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return v
	}
}
