package sql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
)

func classify(t *testing.T, src string) (*Classification, error) {
	t.Helper()
	tokens, err := Scan(src)
	require.NoError(t, err)
	return Classify(tokens)
}

func TestClassify_Kinds(t *testing.T) {
	tests := []struct {
		input string
		kind  StatementKind
	}{
		{"SELECT * FROM ADDRESS", KindSelect},
		{"  select 1", KindSelect},
		{"-- leading comment\nSELECT 1", KindSelect},
		{"/* c */ INSERT INTO t (a) VALUES (:#a)", KindInsert},
		{"update t set a = :#a", KindUpdate},
		{"DELETE FROM t WHERE id = :#id", KindDelete},
		{"WITH x AS (SELECT 1) SELECT * FROM x", KindSelect},
		{"WITH gone AS (SELECT id FROM t) DELETE FROM t WHERE id IN (SELECT id FROM gone)", KindDelete},
		{"CALL DEMO_ADD(:#a, :#b)", KindCall},
		{"{call DEMO_ADD(:#a, :#b)}", KindCall},
		{"{? = call DEMO_ADD(:#a)}", KindCall},
		{"SELECT 1;", KindSelect},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := classify(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, c.Kind)
		})
	}
}

func TestClassify_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"-- only a comment",
		";",
		"DROP TABLE t",
		"EXPLAIN SELECT 1",
		"SELECT 1; SELECT 2",
		"WITH x AS (SELECT 1)",
		"CALL",
		"{call p(:#a)",
		"{exec p}",
		"CALL p(:#a) extra",
		"DELETE",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := classify(t, in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrMalformedStatement), "got %v", err)
		})
	}
}

func TestClassify_Procedure(t *testing.T) {
	c, err := classify(t, "{call public.DEMO_OUT(:#a)}")
	require.NoError(t, err)
	assert.Equal(t, "public.DEMO_OUT", c.Procedure)
	assert.Nil(t, c.Returning)

	c, err = classify(t, "CALL noargs")
	require.NoError(t, err)
	assert.Equal(t, "noargs", c.Procedure)
}

func TestClassify_CallArguments(t *testing.T) {
	c, err := classify(t, "CALL P('fixed', :#amount, coalesce(:#note, 'n/a'), 3)")
	require.NoError(t, err)

	arg, ok := c.CallArgument(0)
	require.True(t, ok)
	assert.Equal(t, 2, arg)

	arg, ok = c.CallArgument(1)
	require.True(t, ok)
	assert.Equal(t, 3, arg)

	_, ok = c.CallArgument(2)
	assert.False(t, ok)
}

func TestClassify_QuotedIdentifiersAreNotKeywords(t *testing.T) {
	t.Run("quoted returning column", func(t *testing.T) {
		c, err := classify(t, `DELETE FROM t WHERE "returning" = :#x`)
		require.NoError(t, err)
		assert.Nil(t, c.Returning)
		assert.Equal(t, []string{"t"}, c.Tables)
		assert.Equal(t, "returning", c.ColumnHint(0))
	})

	t.Run("quoted from column", func(t *testing.T) {
		c, err := classify(t, `SELECT "from" FROM t`)
		require.NoError(t, err)
		assert.Equal(t, []string{"t"}, c.Tables)
	})

	t.Run("bracketed from column", func(t *testing.T) {
		c, err := classify(t, `SELECT [from] FROM t`)
		require.NoError(t, err)
		assert.Equal(t, []string{"t"}, c.Tables)
	})

	t.Run("quoted keyword alias", func(t *testing.T) {
		c, err := classify(t, `SELECT * FROM t "where" JOIN u ON u.id = "where".id`)
		require.NoError(t, err)
		assert.Equal(t, []string{"t", "u"}, c.Tables)
	})

	t.Run("quoted statement keyword", func(t *testing.T) {
		_, err := classify(t, `"SELECT" * FROM t`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrMalformedStatement))
	})
}

func TestClassify_Returning(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *ReturningClause
	}{
		{
			name:     "wildcard",
			input:    "DELETE FROM TEST WHERE charType=:#myCharValue RETURNING *",
			expected: &ReturningClause{Wildcard: true},
		},
		{
			name:     "explicit columns",
			input:    "INSERT INTO t (a) VALUES (:#a) RETURNING id, created_at",
			expected: &ReturningClause{Columns: []string{"id", "created_at"}},
		},
		{
			name:     "alias and qualified",
			input:    "UPDATE t SET a = :#a RETURNING t.id, a + 1 AS next",
			expected: &ReturningClause{Columns: []string{"id", "next"}},
		},
		{
			name:     "returning inside literal is ignored",
			input:    "DELETE FROM t WHERE note = 'RETURNING *'",
			expected: nil,
		},
		{
			name:     "returning inside subquery is ignored",
			input:    "DELETE FROM t WHERE id IN (SELECT id FROM u)",
			expected: nil,
		},
		{
			name:     "into bind targets are not columns",
			input:    "DELETE FROM t WHERE id = :#id RETURNING name INTO :#out",
			expected: &ReturningClause{Columns: []string{"name"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := classify(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c.Returning)
		})
	}
}

func TestClassify_SelectNeverHasReturning(t *testing.T) {
	c, err := classify(t, "SELECT returning FROM t")
	require.NoError(t, err)
	assert.Nil(t, c.Returning)
}

func TestClassify_Tables(t *testing.T) {
	tests := []struct {
		input  string
		tables []string
	}{
		{"SELECT * FROM ADDRESS WHERE number = :#number", []string{"ADDRESS"}},
		{"SELECT * FROM a x, public.b AS y JOIN c ON c.id = x.id", []string{"a", "public.b", "c"}},
		{"INSERT INTO ADDRESS (street, number) VALUES ('X', 1)", []string{"ADDRESS"}},
		{"UPDATE \"Odd Table\" SET a = 1", []string{"Odd Table"}},
		{"DELETE FROM [dbo].[Orders] WHERE id = :#id", []string{"dbo.Orders"}},
		{"SELECT 1", nil},
		{"SELECT * FROM t FOR UPDATE", []string{"t"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := classify(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.tables, c.Tables)
		})
	}
}

func TestClassify_ColumnHints(t *testing.T) {
	tests := []struct {
		name  string
		input string
		hints map[int]string
	}{
		{
			name:  "comparison",
			input: "SELECT * FROM ADDRESS WHERE number = :#number",
			hints: map[int]string{0: "number"},
		},
		{
			name:  "qualified column and reversed operand",
			input: "SELECT * FROM a WHERE a.x >= :#lo AND :#hi > a.x",
			hints: map[int]string{0: "x", 1: "x"},
		},
		{
			name:  "like and between",
			input: "SELECT * FROM t WHERE name LIKE :#n AND age BETWEEN :#lo AND :#hi",
			hints: map[int]string{0: "name", 1: "age", 2: "age"},
		},
		{
			name:  "update set",
			input: "UPDATE t SET street = :#street, number = :#number WHERE id = :#id",
			hints: map[int]string{0: "street", 1: "number", 2: "id"},
		},
		{
			name:  "insert values",
			input: "INSERT INTO ADDRESS (street, number) VALUES (:#street, :#number)",
			hints: map[int]string{0: "street", 1: "number"},
		},
		{
			name:  "insert expression is not hinted",
			input: "INSERT INTO t (a, b) VALUES (:#a + 1, :#b)",
			hints: map[int]string{1: "b"},
		},
		{
			name:  "function argument is not hinted",
			input: "SELECT * FROM t WHERE lower(:#x) = name",
			hints: map[int]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := classify(t, tt.input)
			require.NoError(t, err)
			for marker, col := range tt.hints {
				assert.Equal(t, col, c.ColumnHint(marker), "marker %d", marker)
			}
			assert.Len(t, c.hints, len(tt.hints))
		})
	}
}

func TestStatementKind_ReturnsRows(t *testing.T) {
	assert.True(t, KindSelect.ReturnsRows())
	for _, k := range []StatementKind{KindInsert, KindUpdate, KindDelete, KindCall} {
		assert.False(t, k.ReturnsRows(), k.String())
	}
	assert.Equal(t, "UNKNOWN", StatementKind(0).String())
}
