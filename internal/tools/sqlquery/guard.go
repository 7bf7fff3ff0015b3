package sqlquery

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// readOnlyKeywords lists the statement keywords a query may start with.
var readOnlyKeywords = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN"}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrNotReadOnly is returned for statements outside the read-only whitelist.
var ErrNotReadOnly = errors.New("only read-only queries are allowed")

// checkQuery validates that sql is a single statement starting with a
// read-only keyword. It returns the statement without trailing semicolons.
func checkQuery(sql string) (string, error) {
	statement := strings.TrimSpace(stripComments(sql))
	statement = strings.TrimSpace(strings.TrimRight(statement, "; \t\r\n"))
	if statement == "" {
		return "", fmt.Errorf("query is empty")
	}
	if hasStatementSeparator(statement) {
		return "", fmt.Errorf("multiple statements are not allowed; send one query per call")
	}
	keyword := leadingKeyword(statement)
	if keyword == "EXPLAIN" {
		// EXPLAIN ANALYZE executes its statement, so the explained statement
		// must pass the same check.
		explained := skipKeyword(statement)
		if next := leadingKeyword(explained); next == "ANALYZE" || next == "ANALYSE" {
			explained = skipKeyword(explained)
		}
		keyword = leadingKeyword(explained)
		if keyword != "EXPLAIN" && isReadOnlyKeyword(keyword) {
			return statement, nil
		}
		return "", fmt.Errorf("%w (%s); EXPLAIN got %s", ErrNotReadOnly, strings.Join(readOnlyKeywords, ", "), describeKeyword(keyword))
	}
	if isReadOnlyKeyword(keyword) {
		return statement, nil
	}
	return "", fmt.Errorf("%w (%s); got %s", ErrNotReadOnly, strings.Join(readOnlyKeywords, ", "), describeKeyword(keyword))
}

func isReadOnlyKeyword(keyword string) bool {
	for _, allowed := range readOnlyKeywords {
		if keyword == allowed {
			return true
		}
	}
	return false
}

// skipKeyword drops the leading keyword returned by leadingKeyword.
func skipKeyword(statement string) string {
	statement = strings.TrimLeft(statement, "( \t\r\n")
	end := strings.IndexFunc(statement, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(statement[end:])
}

// checkIdentifier validates a table or column name before interpolation.
func checkIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: use letters, digits and underscores only", name)
	}
	return nil
}

// checkFilter validates a WHERE fragment for count_rows.
func checkFilter(filter string) error {
	if strings.Contains(filter, ";") {
		return fmt.Errorf("where clause must not contain ';'")
	}
	if strings.Contains(filter, "--") || strings.Contains(filter, "/*") {
		return fmt.Errorf("where clause must not contain comments")
	}
	return nil
}

func leadingKeyword(statement string) string {
	statement = strings.TrimLeft(statement, "( \t\r\n")
	end := strings.IndexFunc(statement, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		end = len(statement)
	}
	return strings.ToUpper(statement[:end])
}

func describeKeyword(keyword string) string {
	if keyword == "" {
		return "no statement keyword"
	}
	return keyword
}

// hasStatementSeparator reports a ';' outside quoted literals.
func hasStatementSeparator(statement string) bool {
	var quote rune
	for _, r := range statement {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			return true
		}
	}
	return false
}

// stripComments removes SQL line and block comments outside literals.
func stripComments(sql string) string {
	var (
		builder strings.Builder
		quote   byte
	)
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if quote != 0 {
			builder.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
			builder.WriteByte(c)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			builder.WriteByte('\n')
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 3
			}
			builder.WriteByte(' ')
		default:
			builder.WriteByte(c)
		}
	}
	return builder.String()
}
