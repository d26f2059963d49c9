package logging

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
)

const (
	// MaxQueryLogLength is the maximum length of a statement to log
	MaxQueryLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
	// RedactedLiteral replaces string literals in logged statements
	RedactedLiteral = "'?'"
)

var (
	// Pattern to match secrets in key=value connection strings and driver errors
	// Matches: password=xxx, pwd=xxx, pass=xxx, client_secret=xxx (until next delimiter)
	secretPattern = regexp.MustCompile(`(?i)(password|pwd|pass|client_secret|clientsecret)=[^;&\s]+`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// Fallback for statements the scanner rejects (unterminated quotes)
	literalPattern = regexp.MustCompile(`'(?:[^']|'')*'?`)
)

// SanitizeConnectionString removes sensitive data from connection strings.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := secretPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError sanitizes error messages that might contain sensitive data.
// Use this before logging any error from database operations.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeConnectionString(err.Error())
}

// SanitizeQuery prepares a statement for logging: string literals are
// replaced with '?', secrets are redacted and the result is truncated.
// Quoted identifiers and parameter markers are kept.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := redactLiterals(query)
	sanitized = secretPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)

	if len(sanitized) > MaxQueryLogLength {
		sanitized = sanitized[:MaxQueryLogLength] + "..."
	}
	return sanitized
}

func redactLiterals(query string) string {
	tokens, err := sql.Scan(query)
	if err != nil {
		return literalPattern.ReplaceAllString(query, RedactedLiteral)
	}

	for i, tok := range tokens {
		if tok.Kind == sql.TokenQuotedString && strings.HasPrefix(tok.Text, "'") {
			tokens[i].Text = RedactedLiteral
		}
	}
	return sql.Join(tokens)
}
