package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/models"
)

// PlaceholderStyle selects how positional placeholders are written.
type PlaceholderStyle int

const (
	// PlaceholderQuestion writes "?" (JDBC, database/sql drivers, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar writes "$1", "$2", ... (PostgreSQL).
	PlaceholderDollar
	// PlaceholderAtP writes "@p1", "@p2", ... (SQL Server).
	PlaceholderAtP
)

// Format returns the placeholder for a 1-based ordinal.
func (p PlaceholderStyle) Format(ordinal int) string {
	switch p {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(ordinal)
	case PlaceholderAtP:
		return "@p" + strconv.Itoa(ordinal)
	default:
		return "?"
	}
}

// String returns the style name used in configuration.
func (p PlaceholderStyle) String() string {
	switch p {
	case PlaceholderDollar:
		return "dollar"
	case PlaceholderAtP:
		return "atp"
	default:
		return "question"
	}
}

// ParsePlaceholderStyle reads a configuration value. Empty means question.
func ParsePlaceholderStyle(s string) (PlaceholderStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "question", "?":
		return PlaceholderQuestion, nil
	case "dollar", "$":
		return PlaceholderDollar, nil
	case "atp", "@p":
		return PlaceholderAtP, nil
	default:
		return PlaceholderQuestion, fmt.Errorf("unknown placeholder style %q", s)
	}
}

// Binding is the result of rewriting markers into positional placeholders.
type Binding struct {
	RewrittenText   string
	Parameters      []models.Parameter // by first occurrence
	PositionsByName map[string][]int
	Placeholders    int
}

// Bind replaces every parameter marker with one positional placeholder. Each
// occurrence gets the next ordinal, so a name used k times gets k positions.
func Bind(tokens []Token, style PlaceholderStyle) (*Binding, error) {
	var b strings.Builder
	result := &Binding{PositionsByName: make(map[string][]int)}
	index := make(map[string]int)

	for _, tok := range tokens {
		if tok.Kind != TokenParameterMarker {
			b.WriteString(tok.Text)
			continue
		}
		if tok.Name == "" {
			return nil, fmt.Errorf("%w: marker at offset %d has no name", apperrors.ErrUnknownParameter, tok.Offset)
		}

		result.Placeholders++
		ordinal := result.Placeholders
		b.WriteString(style.Format(ordinal))

		i, seen := index[tok.Name]
		if !seen {
			i = len(result.Parameters)
			index[tok.Name] = i
			result.Parameters = append(result.Parameters, models.Parameter{Name: tok.Name})
		}
		result.Parameters[i].Positions = append(result.Parameters[i].Positions, ordinal)
	}

	for _, p := range result.Parameters {
		result.PositionsByName[p.Name] = append([]int(nil), p.Positions...)
	}
	result.RewrittenText = b.String()
	return result, nil
}

// ParsedStatement is the fully parsed form of one connector statement.
type ParsedStatement struct {
	Source          string
	Kind            StatementKind
	IsBatch         bool
	Returning       *ReturningClause
	Procedure       string
	Tables          []string
	RewrittenText   string
	Parameters      []models.Parameter
	PositionsByName map[string][]int
	Style           PlaceholderStyle

	// CallArguments maps a parameter name to the 1-based CALL argument its
	// first occurrence fills. KindCall only.
	CallArguments map[string]int
}

// HasReturning reports whether the statement carries a RETURNING clause.
func (p *ParsedStatement) HasReturning() bool {
	return p.Returning != nil
}

// PlaceholderCount returns the number of positional placeholders written.
func (p *ParsedStatement) PlaceholderCount() int {
	n := 0
	for _, param := range p.Parameters {
		n += len(param.Positions)
	}
	return n
}

// Parse runs the scanner, classifier and binder over raw SQL text. isBatch is
// carried through untouched: it never changes how the text is parsed.
func Parse(src string, isBatch bool, style PlaceholderStyle) (*ParsedStatement, error) {
	tokens, class, err := validate(src)
	if err != nil {
		return nil, err
	}

	binding, err := Bind(tokens, style)
	if err != nil {
		return nil, err
	}

	// Attach column hints by marker order; the first hinted occurrence wins.
	marker := 0
	byName := make(map[string]int, len(binding.Parameters))
	for i, p := range binding.Parameters {
		byName[p.Name] = i
	}
	var callArgs map[string]int
	if class.Kind == KindCall {
		callArgs = make(map[string]int, len(binding.Parameters))
	}
	for _, tok := range tokens {
		if tok.Kind != TokenParameterMarker {
			continue
		}
		if arg, ok := class.CallArgument(marker); ok {
			if _, seen := callArgs[tok.Name]; !seen {
				callArgs[tok.Name] = arg
			}
		}
		if hint := class.ColumnHint(marker); hint != "" {
			p := &binding.Parameters[byName[tok.Name]]
			if p.Column == "" {
				p.Column = hint
			}
		}
		marker++
	}

	return &ParsedStatement{
		Source:          src,
		Kind:            class.Kind,
		IsBatch:         isBatch,
		Returning:       class.Returning,
		Procedure:       class.Procedure,
		Tables:          class.Tables,
		RewrittenText:   binding.RewrittenText,
		Parameters:      binding.Parameters,
		PositionsByName: binding.PositionsByName,
		Style:           style,
		CallArguments:   callArgs,
	}, nil
}
