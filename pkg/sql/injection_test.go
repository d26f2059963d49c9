package sql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/models"
)

func TestCheckSampleValue(t *testing.T) {
	tests := []struct {
		name            string
		value           any
		expectInjection bool
	}{
		{name: "clean string value", value: "12345"},
		{name: "clean email address", value: "user@example.com"},
		{name: "clean date string", value: "2024-01-15"},
		{name: "clean UUID", value: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "clean search term", value: "laptop computers"},
		{name: "integer value", value: 100},
		{name: "boolean value", value: true},
		{name: "float value", value: 3.14},
		{name: "classic tautology", value: "' OR '1'='1", expectInjection: true},
		{name: "union select", value: "1 UNION SELECT * FROM passwords", expectInjection: true},
		{name: "stacked drop", value: "'; DROP TABLE users--", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckSampleValue("p", tt.value)
			if !tt.expectInjection {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, "p", result.ParamName)
			assert.NotEmpty(t, result.Fingerprint)
			assert.Contains(t, result.Error(), `"p"`)
		})
	}
}

func TestCheckSampleValues_ParameterOrder(t *testing.T) {
	params := []models.Parameter{
		{Name: "a", SampleValue: "' OR '1'='1"},
		{Name: "b"},
		{Name: "c", SampleValue: 7},
		{Name: "d", SampleValue: "'; DROP TABLE users--"},
	}

	results := CheckSampleValues(params)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ParamName)
	assert.Equal(t, "d", results[1].ParamName)
}

func TestApplySamples(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE a = :#a AND b = :#b", false, PlaceholderQuestion)
	require.NoError(t, err)

	require.NoError(t, ApplySamples(stmt, map[string]any{"b": "x"}))
	assert.Nil(t, stmt.Parameters[0].SampleValue)
	assert.Equal(t, "x", stmt.Parameters[1].SampleValue)

	err = ApplySamples(stmt, map[string]any{"zz": 1, "yy": 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownParameter))
	assert.Contains(t, err.Error(), "yy, zz")
}
