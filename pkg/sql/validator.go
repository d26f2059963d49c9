// Package sql scans, classifies and rewrites connector statements written with
// :#name parameter markers.
package sql

import (
	"strings"
)

// validate checks that src is one well-formed statement and returns its tokens
// with a trailing semicolon stripped, plus the classification. Markers are left
// in place.
//
// The validation order is:
// 1. Scan (unterminated quotes and block comments are rejected)
// 2. Classify (unsupported shapes and multiple statements are rejected)
// 3. Strip trailing semicolon and whitespace (normalize)
func validate(src string) ([]Token, *Classification, error) {
	tokens, err := Scan(src)
	if err != nil {
		return nil, nil, err
	}
	class, err := Classify(tokens)
	if err != nil {
		return nil, nil, err
	}
	return stripTrailingSemicolon(tokens), class, nil
}

// stripTrailingSemicolon removes the final top-level semicolon, and the
// whitespace around it, from the last literal token before any trailing
// comments. Tokens are copied; the input slice is not modified.
func stripTrailingSemicolon(tokens []Token) []Token {
	out := append([]Token(nil), tokens...)
	for i := len(out) - 1; i >= 0; i-- {
		tok := out[i]
		if tok.Kind == TokenComment {
			continue
		}
		if tok.Kind != TokenLiteralText {
			return out
		}
		trimmed := strings.TrimRight(tok.Text, " \t\n\r")
		if trimmed == "" {
			continue
		}
		if strings.HasSuffix(trimmed, ";") {
			out[i].Text = strings.TrimRight(strings.TrimSuffix(trimmed, ";"), " \t\n\r")
			if i == len(out)-1 {
				return out
			}
			// Keep a separator before trailing comments.
			out[i].Text += " "
		}
		return out
	}
	return out
}
