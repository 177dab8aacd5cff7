package driver

import (
	"fmt"
	"regexp"
	"strings"
)

// mutatingKeywords are the DML/DDL keywords rejected when a relational
// connection is opened with read_only set. Matching runs against a copy of
// the statement with string literals and comments stripped so that keyword
// lookalikes inside literals do not trip the guard.
var mutatingKeywords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])INSERT(?:[^a-zA-Z_]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])UPDATE(?:[^a-zA-Z_]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])DELETE(?:[^a-zA-Z_]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])DROP(?:[^a-zA-Z_]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])CREATE(?:[^a-zA-Z_]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])ALTER(?:[^a-zA-Z_]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])TRUNCATE(?:[^a-zA-Z_]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])GRANT(?:[^a-zA-Z_]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])REVOKE(?:[^a-zA-Z_]|$)`),
}

var mutatingKeywordNames = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE",
}

// CheckReadOnly rejects statements that would mutate a relational backend.
// Used by the relational drivers when the connection is configured read-only.
func CheckReadOnly(statement string) error {
	trimmed := strings.TrimSpace(statement)
	if trimmed == "" {
		return fmt.Errorf("empty statement")
	}

	cleaned := stripStringsAndComments(trimmed)

	for i, re := range mutatingKeywords {
		if re.MatchString(cleaned) {
			return fmt.Errorf("read-only connection: statement contains %s", mutatingKeywordNames[i])
		}
	}
	return nil
}

// stripStringsAndComments removes string literals ('...', "...") and
// comments (-- to end of line, /* */, # to end of line) so keyword detection
// only sees real SQL tokens. Quote escaping by doubling is honored.
func stripStringsAndComments(sql string) string {
	var out strings.Builder
	i, n := 0, len(sql)

	for i < n {
		switch {
		case i+1 < n && sql[i] == '-' && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
			out.WriteByte(' ')
		case sql[i] == '#':
			for i < n && sql[i] != '\n' {
				i++
			}
			out.WriteByte(' ')
		case i+1 < n && sql[i] == '/' && sql[i+1] == '*':
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
			out.WriteByte(' ')
		case sql[i] == '\'' || sql[i] == '"':
			quote := sql[i]
			i++
			for i < n {
				if sql[i] == quote {
					if i+1 < n && sql[i+1] == quote {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			out.WriteByte(' ')
		default:
			out.WriteByte(sql[i])
			i++
		}
	}
	return out.String()
}
