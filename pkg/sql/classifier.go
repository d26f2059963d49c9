package sql

import (
	"strings"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
)

// StatementKind is the closed set of statement shapes the connector accepts.
type StatementKind int

const (
	KindSelect StatementKind = iota + 1
	KindInsert
	KindUpdate
	KindDelete
	KindCall
)

// String returns the upper-case keyword for the kind.
func (k StatementKind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindCall:
		return "CALL"
	default:
		return "UNKNOWN"
	}
}

// ReturnsRows reports whether statements of this kind produce a result set
// without a RETURNING clause.
func (k StatementKind) ReturnsRows() bool {
	switch k {
	case KindSelect:
		return true
	case KindInsert, KindUpdate, KindDelete, KindCall:
		return false
	default:
		return false
	}
}

// ReturningClause records the output requested by DELETE/INSERT/UPDATE ... RETURNING.
type ReturningClause struct {
	Wildcard bool     // RETURNING * (possibly alongside explicit columns)
	Columns  []string // explicit output names in clause order
}

// Classification is what the classifier learns from the token stream.
type Classification struct {
	Kind      StatementKind
	Returning *ReturningClause
	Procedure string   // CALL target, KindCall only
	Tables    []string // referenced tables in statement order, deduplicated

	// hints maps a marker index to the column it is compared with or assigned to.
	hints map[int]string
	// callArgs maps a marker index to the 1-based CALL argument it sits in.
	callArgs map[int]int
}

// ColumnHint returns the column hinted for the i-th marker of the statement.
func (c *Classification) ColumnHint(marker int) string {
	if c == nil || c.hints == nil {
		return ""
	}
	return c.hints[marker]
}

// CallArgument returns the 1-based argument of the CALL that holds the i-th
// marker. Literal arguments count, so "CALL p('x', :#a)" puts :#a in argument 2.
func (c *Classification) CallArgument(marker int) (int, bool) {
	if c == nil || c.callArgs == nil {
		return 0, false
	}
	arg, ok := c.callArgs[marker]
	return arg, ok
}

// Classify determines the statement kind from the first significant keyword and
// collects the RETURNING clause, tables and column hints. Text that matches
// none of the accepted shapes is malformed.
func Classify(tokens []Token) (*Classification, error) {
	lx := lexemes(tokens)
	if len(lx) == 0 {
		return nil, apperrors.MalformedStatement("empty statement")
	}

	for i, l := range lx {
		if l.is(lexPunct, ";") && l.depth == 0 && i != len(lx)-1 {
			return nil, apperrors.MalformedStatement("multiple statements are not supported (';' at offset %d)", l.offset)
		}
	}
	if last := lx[len(lx)-1]; last.is(lexPunct, ";") {
		lx = lx[:len(lx)-1]
		if len(lx) == 0 {
			return nil, apperrors.MalformedStatement("empty statement")
		}
	}

	c := &Classification{hints: make(map[int]string)}
	first := lx[0]

	switch {
	case first.isKeyword("SELECT"):
		c.Kind = KindSelect
	case first.isKeyword("INSERT"):
		c.Kind = KindInsert
	case first.isKeyword("UPDATE"):
		c.Kind = KindUpdate
	case first.isKeyword("DELETE"):
		c.Kind = KindDelete
	case first.isKeyword("WITH"):
		kind, ok := mainStatementAfterWith(lx)
		if !ok {
			return nil, apperrors.MalformedStatement("WITH clause is not followed by SELECT, INSERT, UPDATE or DELETE")
		}
		c.Kind = kind
	case first.isKeyword("CALL"), first.is(lexPunct, "{"):
		c.callArgs = make(map[int]int)
		name, err := classifyCall(lx, c.callArgs)
		if err != nil {
			return nil, err
		}
		c.Kind = KindCall
		c.Procedure = name
		return c, nil
	default:
		return nil, apperrors.MalformedStatement("unsupported statement starting with %q", first.text)
	}

	c.Tables = collectTables(lx, c.Kind)
	if len(c.Tables) == 0 && c.Kind != KindSelect {
		return nil, apperrors.MalformedStatement("%s statement has no target table", c.Kind)
	}

	switch c.Kind {
	case KindInsert, KindUpdate, KindDelete:
		c.Returning = parseReturning(lx)
	case KindSelect, KindCall:
	}

	collectComparisonHints(lx, c.hints)
	if c.Kind == KindInsert {
		collectInsertHints(lx, c.hints)
	}

	return c, nil
}

// mainStatementAfterWith finds the first top-level DML keyword after a CTE list.
func mainStatementAfterWith(lx []lexeme) (StatementKind, bool) {
	for _, l := range lx[1:] {
		if l.depth != 0 {
			continue
		}
		switch {
		case l.isKeyword("SELECT"):
			return KindSelect, true
		case l.isKeyword("INSERT"):
			return KindInsert, true
		case l.isKeyword("UPDATE"):
			return KindUpdate, true
		case l.isKeyword("DELETE"):
			return KindDelete, true
		}
	}
	return 0, false
}

// classifyCall accepts "CALL name(...)", "{call name(...)}" and
// "{? = call name(...)}" and returns the procedure name. Markers inside the
// argument list are recorded in args with the argument they belong to.
func classifyCall(lx []lexeme, args map[int]int) (string, error) {
	i := 0
	escaped := false
	if lx[0].is(lexPunct, "{") {
		escaped = true
		i = 1
		if i+1 < len(lx) && lx[i].is(lexPunct, "?") && lx[i+1].is(lexPunct, "=") {
			i += 2
		}
		if i >= len(lx) || !lx[i].isKeyword("CALL") {
			return "", apperrors.MalformedStatement("escape syntax must be {call procedure(...)}")
		}
	}
	i++ // CALL

	name, _, next := qualifiedName(lx, i)
	if name == "" {
		return "", apperrors.MalformedStatement("CALL without a procedure name")
	}

	if next < len(lx) && lx[next].is(lexPunct, "(") {
		depth := lx[next].depth
		arg := 1
		next++
		for next < len(lx) && !(lx[next].is(lexPunct, ")") && lx[next].depth == depth) {
			switch l := lx[next]; {
			case l.is(lexPunct, ",") && l.depth == depth+1:
				arg++
			case l.kind == lexMarker:
				args[l.marker] = arg
			}
			next++
		}
		if next >= len(lx) {
			return "", apperrors.MalformedStatement("unbalanced parentheses in CALL %s", name)
		}
		next++
	}

	if escaped {
		if next >= len(lx) || !lx[next].is(lexPunct, "}") {
			return "", apperrors.MalformedStatement("missing '}' after {call %s", name)
		}
		next++
	}
	if next != len(lx) {
		return "", apperrors.MalformedStatement("unexpected %q after CALL %s", lx[next].text, name)
	}
	return name, nil
}

var tableTerminators = map[string]bool{
	"WHERE": true, "SET": true, "VALUES": true, "SELECT": true, "RETURNING": true,
	"GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true, "OFFSET": true,
	"UNION": true, "EXCEPT": true, "INTERSECT": true, "ON": true, "USING": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"CROSS": true, "NATURAL": true, "OUTER": true, "FETCH": true, "FOR": true,
	"WINDOW": true, "OUTPUT": true, "DEFAULT": true,
}

// collectTables records the tables named after FROM, JOIN, INTO and UPDATE at
// the top level of the statement.
func collectTables(lx []lexeme, kind StatementKind) []string {
	var tables []string
	seen := map[string]bool{}
	add := func(name string) {
		key := strings.ToUpper(name)
		if name != "" && !seen[key] {
			seen[key] = true
			tables = append(tables, name)
		}
	}

	for i := 0; i < len(lx); i++ {
		l := lx[i]
		if l.depth != 0 || l.kind != lexWord {
			continue
		}
		switch {
		case l.isKeyword("INTO") && kind == KindInsert,
			l.isKeyword("JOIN"),
			l.isKeyword("UPDATE") && kind == KindUpdate && i == firstKeywordIndex(lx, "UPDATE"):
			name, _, _ := qualifiedName(lx, i+1)
			add(name)
		case l.isKeyword("FROM"):
			j := i + 1
			for {
				name, _, next := qualifiedName(lx, j)
				if name == "" {
					break
				}
				add(name)
				j = skipAlias(lx, next)
				if j < len(lx) && lx[j].is(lexPunct, ",") && lx[j].depth == 0 {
					j++
					continue
				}
				break
			}
		}
	}
	return tables
}

func firstKeywordIndex(lx []lexeme, word string) int {
	for i, l := range lx {
		if l.depth == 0 && l.isKeyword(word) {
			return i
		}
	}
	return -1
}

// skipAlias skips "AS alias" or a bare alias after a table name.
func skipAlias(lx []lexeme, i int) int {
	if i < len(lx) && lx[i].isKeyword("AS") {
		return i + 2
	}
	if i < len(lx) && lx[i].kind == lexWord && (lx[i].quoted || !tableTerminators[lx[i].upper()]) {
		return i + 1
	}
	return i
}

// parseReturning reads a top-level RETURNING clause.
func parseReturning(lx []lexeme) *ReturningClause {
	start := -1
	for i, l := range lx {
		if l.depth == 0 && l.isKeyword("RETURNING") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	rc := &ReturningClause{}
	var item []lexeme
	flush := func() {
		if len(item) == 0 {
			return
		}
		if len(item) == 1 && item[0].is(lexPunct, "*") {
			rc.Wildcard = true
		} else if name := outputName(item); name != "" {
			rc.Columns = append(rc.Columns, name)
		}
		item = nil
	}

	for _, l := range lx[start:] {
		if l.depth == 0 && l.is(lexPunct, ",") {
			flush()
			continue
		}
		if l.depth == 0 && l.isKeyword("INTO") {
			// Oracle style RETURNING ... INTO targets are bind variables.
			break
		}
		item = append(item, l)
	}
	flush()
	return rc
}

// outputName returns the result column name of one select-list style item:
// the alias when present, else the last identifier of a column reference, else
// the item text.
func outputName(item []lexeme) string {
	n := len(item)
	if n >= 2 && item[n-2].isKeyword("AS") && item[n-1].kind == lexWord {
		return item[n-1].text
	}
	if full, last, next := qualifiedName(item, 0); full != "" && next == n {
		return last
	}
	if n >= 2 && item[n-1].kind == lexWord && item[n-2].kind != lexPunct {
		return item[n-1].text
	}
	if n >= 2 && item[n-1].kind == lexWord && item[n-2].is(lexPunct, ")") {
		return item[n-1].text
	}
	var b strings.Builder
	for _, l := range item {
		b.WriteString(l.text)
	}
	return b.String()
}

var comparisonOps = map[string]bool{
	"=": true, "<": true, ">": true, "<=": true, ">=": true, "<>": true, "!=": true,
}

// collectComparisonHints records "col <op> :#x", ":#x <op> col",
// "col LIKE :#x" and "col BETWEEN :#a AND :#b" pairs.
func collectComparisonHints(lx []lexeme, hints map[int]string) {
	for i, l := range lx {
		if l.kind != lexMarker {
			continue
		}
		if _, done := hints[l.marker]; done {
			continue
		}
		if col := columnBefore(lx, i); col != "" {
			hints[l.marker] = col
			continue
		}
		if col := columnAfter(lx, i); col != "" {
			hints[l.marker] = col
		}
	}
}

func columnBefore(lx []lexeme, i int) string {
	if i < 2 {
		return ""
	}
	op := lx[i-1]
	isOp := op.kind == lexPunct && comparisonOps[op.text]
	if op.isKeyword("LIKE", "ILIKE") {
		isOp = true
	}
	if isOp {
		return columnEndingAt(lx, i-2)
	}
	if op.isKeyword("BETWEEN") {
		return columnEndingAt(lx, i-2)
	}
	if op.isKeyword("AND") && i >= 4 && lx[i-2].kind == lexMarker && lx[i-3].isKeyword("BETWEEN") {
		return columnEndingAt(lx, i-4)
	}
	return ""
}

func columnAfter(lx []lexeme, i int) string {
	if i+2 >= len(lx) {
		return ""
	}
	op := lx[i+1]
	if op.kind != lexPunct || !comparisonOps[op.text] {
		return ""
	}
	_, last, _ := qualifiedName(lx, i+2)
	if last == "" || lx[i+2].isKeyword("NULL", "TRUE", "FALSE", "SELECT") {
		return ""
	}
	return last
}

// columnEndingAt returns the unqualified column whose last identifier is lx[end].
func columnEndingAt(lx []lexeme, end int) string {
	if end < 0 || lx[end].kind != lexWord {
		return ""
	}
	if lx[end].isKeyword("NULL", "TRUE", "FALSE", "WHERE", "AND", "OR", "NOT", "SET", "ON", "THEN", "ELSE", "WHEN") {
		return ""
	}
	return lx[end].text
}

// collectInsertHints pairs "INSERT INTO t (c1, c2) VALUES (v1, v2), (...)"
// columns with marker values by position.
func collectInsertHints(lx []lexeme, hints map[int]string) {
	into := firstKeywordIndex(lx, "INTO")
	if into < 0 {
		return
	}
	_, _, i := qualifiedName(lx, into+1)
	if i >= len(lx) || !lx[i].is(lexPunct, "(") {
		return
	}

	var columns []string
	for i++; i < len(lx) && !(lx[i].is(lexPunct, ")") && lx[i].depth == 0); i++ {
		if lx[i].kind == lexWord && lx[i].depth == 1 {
			if i+1 < len(lx) && lx[i+1].is(lexPunct, ".") {
				continue
			}
			columns = append(columns, lx[i].text)
		}
	}

	values := firstKeywordIndex(lx, "VALUES")
	if values < 0 {
		return
	}
	col := 0
	tupleStart := false
	for j := values + 1; j < len(lx); j++ {
		l := lx[j]
		if l.depth == 0 {
			if l.is(lexPunct, "(") {
				col = 0
				tupleStart = true
				continue
			}
			if l.isKeyword("RETURNING", "ON") {
				return
			}
			continue
		}
		if l.depth != 1 || !tupleStart {
			continue
		}
		switch {
		case l.is(lexPunct, ","):
			col++
		case l.kind == lexMarker && col < len(columns) && isLoneValue(lx, j):
			if _, done := hints[l.marker]; !done {
				hints[l.marker] = columns[col]
			}
		}
	}
}

// isLoneValue reports whether the marker at j is the whole tuple element.
func isLoneValue(lx []lexeme, j int) bool {
	if j == 0 || j+1 >= len(lx) {
		return false
	}
	prev, next := lx[j-1], lx[j+1]
	prevOK := prev.is(lexPunct, ",") || (prev.is(lexPunct, "(") && prev.depth == 0)
	nextOK := next.is(lexPunct, ",") || (next.is(lexPunct, ")") && next.depth == 0)
	return prevOK && nextOK
}
