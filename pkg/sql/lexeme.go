package sql

import "strings"

type lexemeKind int

const (
	lexWord lexemeKind = iota // keyword or identifier, quoted identifiers unquoted
	lexPunct                  // single punctuation character or two-char operator
	lexString                 // single-quoted literal
	lexMarker                 // :#name
	lexOther                  // numbers and anything else
)

// lexeme is a significant unit of literal text used by the classifier. Comments
// and whitespace never produce lexemes.
type lexeme struct {
	kind   lexemeKind
	text   string
	depth  int // parenthesis depth the lexeme sits at
	offset int // byte offset in the statement source
	marker int // index into the marker list, lexMarker only
	quoted bool // "name" or [name]; never a keyword
}

// upper returns the lexeme text upper-cased, for keyword comparison.
func (l lexeme) upper() string {
	return strings.ToUpper(l.text)
}

func (l lexeme) is(kind lexemeKind, text string) bool {
	return l.kind == kind && strings.EqualFold(l.text, text)
}

func (l lexeme) isKeyword(words ...string) bool {
	if l.kind != lexWord || l.quoted {
		return false
	}
	u := l.upper()
	for _, w := range words {
		if u == w {
			return true
		}
	}
	return false
}

var twoCharOps = []string{"<=", ">=", "<>", "!=", "||", "::"}

// lexemes walks the scanned tokens and produces significant lexemes with their
// parenthesis depth. Depth never goes below zero.
func lexemes(tokens []Token) []lexeme {
	var out []lexeme
	depth := 0
	markerIdx := 0

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenComment:
			continue
		case TokenParameterMarker:
			out = append(out, lexeme{kind: lexMarker, text: tok.Name, depth: depth, offset: tok.Offset, marker: markerIdx})
			markerIdx++
			continue
		case TokenQuotedString:
			if strings.HasPrefix(tok.Text, `"`) {
				name := strings.ReplaceAll(tok.Text[1:len(tok.Text)-1], `""`, `"`)
				out = append(out, lexeme{kind: lexWord, text: name, depth: depth, offset: tok.Offset, quoted: true})
			} else {
				out = append(out, lexeme{kind: lexString, text: tok.Text, depth: depth, offset: tok.Offset})
			}
			continue
		}

		text := tok.Text
		i := 0
		for i < len(text) {
			c := text[i]
			switch {
			case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
				i++
			case isIdentStart(c):
				j := i + 1
				for j < len(text) && (isIdentChar(text[j]) || text[j] == '$' || text[j] >= 0x80) {
					j++
				}
				out = append(out, lexeme{kind: lexWord, text: text[i:j], depth: depth, offset: tok.Offset + i})
				i = j
			case c >= '0' && c <= '9':
				j := i + 1
				for j < len(text) && (isIdentChar(text[j]) || text[j] == '.') {
					j++
				}
				out = append(out, lexeme{kind: lexOther, text: text[i:j], depth: depth, offset: tok.Offset + i})
				i = j
			case c == '[':
				// SQL Server bracketed identifier.
				j := strings.IndexByte(text[i:], ']')
				if j < 0 {
					out = append(out, lexeme{kind: lexPunct, text: "[", depth: depth, offset: tok.Offset + i})
					i++
					continue
				}
				out = append(out, lexeme{kind: lexWord, text: text[i+1 : i+j], depth: depth, offset: tok.Offset + i, quoted: true})
				i += j + 1
			case c == '(':
				out = append(out, lexeme{kind: lexPunct, text: "(", depth: depth, offset: tok.Offset + i})
				depth++
				i++
			case c == ')':
				if depth > 0 {
					depth--
				}
				out = append(out, lexeme{kind: lexPunct, text: ")", depth: depth, offset: tok.Offset + i})
				i++
			default:
				width := 1
				for _, op := range twoCharOps {
					if strings.HasPrefix(text[i:], op) {
						width = 2
						break
					}
				}
				out = append(out, lexeme{kind: lexPunct, text: text[i : i+width], depth: depth, offset: tok.Offset + i})
				i += width
			}
		}
	}
	return out
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

// qualifiedName reads "a", "a.b" or "a.b.c" starting at i and returns the full
// dotted name, the last part and the index after the name.
func qualifiedName(lx []lexeme, i int) (full, last string, next int) {
	if i >= len(lx) || lx[i].kind != lexWord {
		return "", "", i
	}
	parts := []string{lx[i].text}
	next = i + 1
	for next+1 < len(lx) && lx[next].is(lexPunct, ".") && lx[next+1].kind == lexWord {
		parts = append(parts, lx[next+1].text)
		next += 2
	}
	return strings.Join(parts, "."), parts[len(parts)-1], next
}
