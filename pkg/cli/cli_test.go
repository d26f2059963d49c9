package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd("1.2.3")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// isolate moves the test into an empty directory and clears the datasource
// environment so neither ./config.yaml nor the host leak in.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, name := range []string{
		"DATASOURCE_TYPE", "DATASOURCE_PATH", "DATASOURCE_HOST", "PLACEHOLDER_STYLE",
		"TLS_CERT_PATH", "TLS_KEY_PATH", "ENVIRONMENT",
	} {
		// Setenv restores the original value; an empty variable would still
		// override YAML, so it is removed outright.
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	t.Setenv("PLACEHOLDER_STYLE", "question")
	t.Setenv("ENVIRONMENT", "test")
}

const addressSchema = `
CREATE TABLE IF NOT EXISTS address (street VARCHAR(255), number INTEGER);
`

// addressScript writes the ADDRESS schema to a SQL file and returns its path.
func addressScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "address.sql")
	require.NoError(t, os.WriteFile(path, []byte(addressSchema), 0644))
	return path
}

// addressDB creates a SQLite file with the ADDRESS table and returns its path.
func addressDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "address.db")

	intro, err := sqlite.NewIntrospector(context.Background(), &sqlite.Config{
		Path:          path,
		BusyTimeoutMS: sqlite.DefaultBusyTimeoutMS(),
		InitScript:    addressScript(t),
	}, nil, uuid.Nil, "", nil)
	require.NoError(t, err)
	require.NoError(t, intro.Close())
	return path
}

type describeOutput struct {
	Kind             string          `json:"kind"`
	IsBatch          bool            `json:"is_batch"`
	RewrittenSQL     string          `json:"rewritten_sql"`
	InputSchema      json.RawMessage `json:"input_schema"`
	ElementSchema    json.RawMessage `json:"element_schema"`
	DescribeStrategy string          `json:"describe_strategy"`
	Procedures       []any           `json:"procedures"`
}

func decodeOutput(t *testing.T, stdout string) describeOutput {
	t.Helper()
	var out describeOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out), stdout)
	return out
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "sqlconnector 1.2.3\n", stdout)
}

func TestHelpListsCommands(t *testing.T) {
	stdout, _, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"serve", "describe", "procedures", "version"} {
		assert.Contains(t, stdout, name)
	}
}

func TestDescribe_SQLiteFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("DATASOURCE_TYPE", "sqlite")
	t.Setenv("DATASOURCE_PATH", addressDB(t))

	stdout, _, err := execute(t, "describe", "--sql", "SELECT * FROM ADDRESS WHERE number = :#number")
	require.NoError(t, err)

	out := decodeOutput(t, stdout)
	assert.Equal(t, "SELECT", out.Kind)
	assert.Equal(t, "SELECT * FROM ADDRESS WHERE number = ?", out.RewrittenSQL)
	assert.Equal(t, "rollback_probe", out.DescribeStrategy)
	assert.JSONEq(t, `{
		"$schema": "http://json-schema.org/schema#",
		"type": "object",
		"id": "urn:jsonschema:sql:param:in",
		"properties": {"number": {"type": "integer"}}
	}`, string(out.InputSchema))
	assert.JSONEq(t, `{
		"$schema": "http://json-schema.org/schema#",
		"type": "object",
		"id": "urn:jsonschema:sql:param:out",
		"properties": {"street": {"type": "string"}, "number": {"type": "integer"}}
	}`, string(out.ElementSchema))
}

func TestDescribe_SQLiteFromConfigFile(t *testing.T) {
	isolate(t)
	data, err := yaml.Marshal(map[string]any{
		"env": "test",
		"datasource": map[string]any{
			"type": "sqlite",
			"path": addressDB(t),
		},
	})
	require.NoError(t, err)
	configPath := filepath.Join(t.TempDir(), "connector.yaml")
	require.NoError(t, os.WriteFile(configPath, data, 0644))

	stdout, _, err := execute(t, "describe", "--config", configPath, "--batch",
		"--sql", "INSERT INTO ADDRESS (street, number) VALUES (:#street, :#number)")
	require.NoError(t, err)

	out := decodeOutput(t, stdout)
	assert.Equal(t, "INSERT", out.Kind)
	assert.True(t, out.IsBatch)
	assert.Equal(t, "INSERT INTO ADDRESS (street, number) VALUES (?, ?)", out.RewrittenSQL)
	assert.Empty(t, out.ElementSchema)
}

func TestDescribe_DefaultConfigWithInitScript(t *testing.T) {
	isolate(t)
	data, err := yaml.Marshal(map[string]any{
		"env": "test",
		"datasource": map[string]any{
			"type":    "sqlite",
			"path":    sqlite.MemoryPath,
			"options": map[string]any{"init_script": addressScript(t)},
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile("config.yaml", data, 0644))

	stdout, _, err := execute(t, "describe", "--sql", "SELECT street FROM ADDRESS WHERE number = :#number")
	require.NoError(t, err)

	out := decodeOutput(t, stdout)
	assert.Equal(t, "SELECT", out.Kind)
	assert.Equal(t, "SELECT street FROM ADDRESS WHERE number = ?", out.RewrittenSQL)
	assert.JSONEq(t, `{
		"$schema": "http://json-schema.org/schema#",
		"type": "object",
		"id": "urn:jsonschema:sql:param:in",
		"properties": {"number": {"type": "integer"}}
	}`, string(out.InputSchema))
}

func TestDescribe_MalformedStatement(t *testing.T) {
	isolate(t)
	t.Setenv("DATASOURCE_TYPE", "sqlite")
	t.Setenv("DATASOURCE_PATH", addressDB(t))

	_, _, err := execute(t, "describe", "--sql", "SELECT * FROM ADDRESS WHERE street = 'Main")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedStatement), err.Error())
}

func TestDescribe_StatementRejectedByDatabase(t *testing.T) {
	isolate(t)
	t.Setenv("DATASOURCE_TYPE", "sqlite")
	t.Setenv("DATASOURCE_PATH", addressDB(t))

	_, _, err := execute(t, "describe", "--sql", "SELECT nope FROM ADDRESS WHERE number = :#number")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStatementInvalid), err.Error())
}

func TestDescribe_Offline(t *testing.T) {
	isolate(t)

	stdout, _, err := execute(t, "describe", "--offline", "--style", "atp",
		"--sql", "SELECT * FROM T WHERE a = :#a AND b = :#b")
	require.NoError(t, err)

	out := decodeOutput(t, stdout)
	assert.Equal(t, "SELECT * FROM T WHERE a = @p1 AND b = @p2", out.RewrittenSQL)
	assert.Empty(t, out.DescribeStrategy)
}

func TestDescribe_OfflineUsesConfiguredStyle(t *testing.T) {
	isolate(t)
	t.Setenv("PLACEHOLDER_STYLE", "dollar")

	stdout, _, err := execute(t, "describe", "--offline", "--sql", "DELETE FROM T WHERE a = :#a")
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM T WHERE a = $1", decodeOutput(t, stdout).RewrittenSQL)
}

func TestDescribe_WithoutDatasource(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "describe", "--sql", "SELECT 1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNoDatasource))
	assert.Contains(t, err.Error(), "--offline")
}

func TestDescribe_RequiresStatement(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "describe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--sql")
}

func TestDescribe_UnknownDatasourceType(t *testing.T) {
	isolate(t)
	t.Setenv("DATASOURCE_TYPE", "oracle")

	_, _, err := execute(t, "describe", "--sql", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestProcedures_SQLiteHasNone(t *testing.T) {
	isolate(t)
	t.Setenv("DATASOURCE_TYPE", "sqlite")
	t.Setenv("DATASOURCE_PATH", addressDB(t))

	stdout, _, err := execute(t, "procedures", "--pattern", "demo")
	require.NoError(t, err)

	out := decodeOutput(t, stdout)
	assert.Empty(t, out.Procedures)
	assert.Equal(t, "rollback_probe", out.DescribeStrategy)
}

func TestProcedures_WithoutDatasource(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "procedures")
	assert.ErrorIs(t, err, errNoDatasource)
}

func TestDescribe_OfflineIgnoresDatasource(t *testing.T) {
	isolate(t)
	t.Setenv("DATASOURCE_TYPE", "sqlite")
	t.Setenv("DATASOURCE_PATH", filepath.Join(t.TempDir(), "missing", "never-created.db"))

	stdout, _, err := execute(t, "describe", "--offline", "--sql", "UPDATE T SET a = :#a")
	require.NoError(t, err)
	assert.Equal(t, "UPDATE T SET a = ?", decodeOutput(t, stdout).RewrittenSQL)
}
