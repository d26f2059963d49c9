package mssql

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sqltype"
)

// parseSchemaTable parses a name that may include schema.
// SQL Server format: [schema].[name] or schema.name
// Returns (schema, name). Schema is empty when not specified.
func parseSchemaTable(name string) (string, string) {
	// Remove brackets if present
	cleaned := strings.ReplaceAll(name, "[", "")
	cleaned = strings.ReplaceAll(cleaned, "]", "")

	if i := strings.LastIndexByte(cleaned, '.'); i >= 0 {
		return cleaned[:i], cleaned[i+1:]
	}
	return "", cleaned
}

// escapeLike escapes LIKE wildcards, including SQL Server's bracket classes,
// for use with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `[`, `\[`)
	return r.Replace(s)
}

// sqlServerTypes are names whose meaning differs from the generic table.
// TIMESTAMP is a rowversion in SQL Server, not a point in time.
var sqlServerTypes = map[string]sqltype.Family{
	"TIMESTAMP":        sqltype.Binary,
	"ROWVERSION":       sqltype.Binary,
	"SYSNAME":          sqltype.NVarchar,
	"FLOAT":            sqltype.Double,
	"SQL_VARIANT":      sqltype.Other,
	"HIERARCHYID":      sqltype.Other,
	"GEOGRAPHY":        sqltype.Other,
	"GEOMETRY":         sqltype.Other,
	"UNIQUEIDENTIFIER": sqltype.Char,
}

// familyForSystemType resolves a system_type_name such as "nvarchar(50)" or
// "decimal(10,2)" to a family.
func familyForSystemType(name string) sqltype.Family {
	base := strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if f, ok := sqlServerTypes[base]; ok {
		return f
	}
	return sqltype.FromTypeName(base)
}

// scanRow reads the current row into a map keyed by lower-case column name.
// The describe procedures return wide result sets whose shape varies across
// server versions, so columns are picked by name.
func scanRow(rows *sql.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[strings.ToLower(c)] = values[i]
	}
	return row, nil
}

func rowString(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func rowInt(row map[string]any, key string) int {
	switch v := row[key].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	case []byte:
		n, _ := strconv.Atoi(string(v))
		return n
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func rowBool(row map[string]any, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case []byte:
		return string(v) == "1" || strings.EqualFold(string(v), "true")
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	default:
		return false
	}
}
