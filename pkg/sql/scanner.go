package sql

import (
	"strings"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
)

// TokenKind identifies what a Token holds.
type TokenKind int

const (
	TokenLiteralText TokenKind = iota
	TokenQuotedString
	TokenComment
	TokenParameterMarker
)

// String returns the token kind name.
func (k TokenKind) String() string {
	switch k {
	case TokenLiteralText:
		return "LiteralText"
	case TokenQuotedString:
		return "QuotedString"
	case TokenComment:
		return "Comment"
	case TokenParameterMarker:
		return "ParameterMarker"
	default:
		return "Unknown"
	}
}

// Token is one lexical unit of a statement. Text is the exact source slice so
// that concatenating every Token's Text reproduces the input.
type Token struct {
	Kind   TokenKind
	Text   string
	Name   string // parameter name, markers only
	Offset int    // byte offset of Text in the source
}

// MarkerPrefix introduces a named parameter: ":#name".
const MarkerPrefix = ":#"

type scanState int

const (
	stateNormal scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateLineComment
	stateBlockComment
)

func (s scanState) String() string {
	switch s {
	case stateNormal:
		return "normal"
	case stateSingleQuote:
		return "single-quoted literal"
	case stateDoubleQuote:
		return "double-quoted identifier"
	case stateLineComment:
		return "line comment"
	case stateBlockComment:
		return "block comment"
	default:
		return "unknown"
	}
}

// scanner is a character-level state machine over the source text.
type scanner struct {
	src    string
	pos    int
	start  int // start of the token being accumulated
	state  scanState
	opened int // offset where the current quote/comment began
	tokens []Token
}

// Scan splits raw SQL into tokens. Quoted literals, quoted identifiers and
// comments are opaque: markers inside them are not recognized. Quotes escape by
// doubling. Text that ends inside a quote or block comment is malformed; a line
// comment may run to end of input.
func Scan(src string) ([]Token, error) {
	s := &scanner{src: src}
	for s.pos < len(s.src) {
		switch s.state {
		case stateNormal:
			s.stepNormal()
		case stateSingleQuote:
			s.stepQuote('\'', TokenQuotedString)
		case stateDoubleQuote:
			s.stepQuote('"', TokenQuotedString)
		case stateLineComment:
			s.stepLineComment()
		case stateBlockComment:
			s.stepBlockComment()
		}
	}

	switch s.state {
	case stateNormal:
		s.emit(TokenLiteralText)
	case stateLineComment:
		// A line comment may run to end of input.
		s.emit(TokenComment)
	default:
		return nil, apperrors.MalformedStatement("unterminated %s starting at offset %d", s.state, s.opened)
	}
	return s.tokens, nil
}

func (s *scanner) peek(k int) byte {
	if s.pos+k < len(s.src) {
		return s.src[s.pos+k]
	}
	return 0
}

// emit closes the pending token [start,pos) if it is non-empty.
func (s *scanner) emit(kind TokenKind) {
	if s.pos > s.start {
		s.tokens = append(s.tokens, Token{Kind: kind, Text: s.src[s.start:s.pos], Offset: s.start})
	}
	s.start = s.pos
}

func (s *scanner) enter(state scanState, width int) {
	s.emit(TokenLiteralText)
	s.state = state
	s.opened = s.pos
	s.pos += width
}

func (s *scanner) stepNormal() {
	c := s.src[s.pos]
	switch {
	case c == '\'':
		s.enter(stateSingleQuote, 1)
	case c == '"':
		s.enter(stateDoubleQuote, 1)
	case c == '-' && s.peek(1) == '-':
		s.enter(stateLineComment, 2)
	case c == '/' && s.peek(1) == '*':
		s.enter(stateBlockComment, 2)
	case c == ':' && s.peek(1) == '#' && isIdentChar(s.peek(2)):
		s.emit(TokenLiteralText)
		end := s.pos + len(MarkerPrefix)
		for end < len(s.src) && isIdentChar(s.src[end]) {
			end++
		}
		s.tokens = append(s.tokens, Token{
			Kind:   TokenParameterMarker,
			Text:   s.src[s.pos:end],
			Name:   s.src[s.pos+len(MarkerPrefix) : end],
			Offset: s.pos,
		})
		s.pos = end
		s.start = end
	default:
		s.pos++
	}
}

func (s *scanner) stepQuote(quote byte, kind TokenKind) {
	if s.src[s.pos] != quote {
		s.pos++
		return
	}
	if s.peek(1) == quote {
		// Doubled quote stays inside the literal.
		s.pos += 2
		return
	}
	s.pos++
	s.emit(kind)
	s.state = stateNormal
}

func (s *scanner) stepLineComment() {
	if s.src[s.pos] == '\n' {
		s.pos++
		s.emit(TokenComment)
		s.state = stateNormal
		return
	}
	s.pos++
}

func (s *scanner) stepBlockComment() {
	if s.src[s.pos] == '*' && s.peek(1) == '/' {
		s.pos += 2
		s.emit(TokenComment)
		s.state = stateNormal
		return
	}
	s.pos++
}

func isIdentChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Join reassembles token text.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}
