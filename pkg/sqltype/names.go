package sqltype

import "strings"

// typeNames maps vendor type names, as reported by information_schema views and
// driver column metadata, to a family. Keys are upper-case with parameters
// (length, precision) and array suffixes removed.
var typeNames = map[string]Family{
	// Integers
	"TINYINT":   TinyInt,
	"SMALLINT":  SmallInt,
	"INT2":      SmallInt,
	"INT":       Integer,
	"INTEGER":   Integer,
	"INT4":      Integer,
	"MEDIUMINT": Integer,
	"SERIAL":    Integer,
	"BIGINT":    BigInt,
	"INT8":      BigInt,
	"BIGSERIAL": BigInt,
	"OID":       BigInt,

	// Exact and approximate numerics
	"DECIMAL":          Decimal,
	"NUMERIC":          Numeric,
	"MONEY":            Decimal,
	"SMALLMONEY":       Decimal,
	"REAL":             Real,
	"FLOAT4":           Real,
	"FLOAT":            Float,
	"DOUBLE":           Double,
	"DOUBLE PRECISION": Double,
	"FLOAT8":           Double,

	// Boolean
	"BIT":     Bit,
	"BOOL":    Boolean,
	"BOOLEAN": Boolean,

	// Character
	"CHAR":              Char,
	"CHARACTER":         Char,
	"BPCHAR":            Char,
	"NCHAR":             NChar,
	"VARCHAR":           Varchar,
	"CHARACTER VARYING": Varchar,
	"NVARCHAR":          NVarchar,
	"TEXT":              LongVarchar,
	"NTEXT":             LongNVarchar,
	"CLOB":              Clob,
	"NCLOB":             NClob,
	"UUID":              Varchar,
	"UNIQUEIDENTIFIER":  Char,
	"CITEXT":            Varchar,
	"NAME":              Varchar,
	"JSON":              Other,
	"JSONB":             Other,
	"XML":               SQLXML,
	"ROWID":             RowID,

	// Binary
	"BINARY":    Binary,
	"VARBINARY": Varbinary,
	"BYTEA":     Binary,
	"IMAGE":     LongVarbinary,
	"BLOB":      Blob,

	// Temporal
	"DATE":                        Date,
	"TIME":                        Time,
	"TIME WITHOUT TIME ZONE":      Time,
	"TIME WITH TIME ZONE":         TimeWithTimezone,
	"TIMETZ":                      TimeWithTimezone,
	"TIMESTAMP":                   Timestamp,
	"TIMESTAMP WITHOUT TIME ZONE": Timestamp,
	"DATETIME":                    Timestamp,
	"DATETIME2":                   Timestamp,
	"SMALLDATETIME":               Timestamp,
	"TIMESTAMP WITH TIME ZONE":    TimestampWithTimezone,
	"TIMESTAMPTZ":                 TimestampWithTimezone,
	"DATETIMEOFFSET":              TimestampWithTimezone,

	// Structured
	"ARRAY":     Array,
	"REFCURSOR": RefCursor,
	"RECORD":    Struct,
}

// FromTypeName resolves a vendor type name such as "character varying(255)",
// "INT4" or "_int4" to a family. Array types (suffix "[]", leading underscore
// for PostgreSQL udt names, or the literal ARRAY) resolve to Array. Names that
// are not recognized resolve to Other.
func FromTypeName(name string) Family {
	n := normalizeTypeName(name)
	if n == "" {
		return Other
	}
	if strings.HasSuffix(n, "[]") || (strings.HasPrefix(n, "_") && len(n) > 1) {
		return Array
	}
	if f, ok := typeNames[n]; ok {
		return f
	}
	return Other
}

// FromAffinity applies SQLite's column affinity rules to a declared type, which
// may be any text at all. It is used for databases that do not enforce type names.
func FromAffinity(declared string) Family {
	n := normalizeTypeName(declared)
	if n == "" {
		return Other
	}
	if f, ok := typeNames[n]; ok {
		return f
	}
	switch {
	case strings.Contains(n, "INT"):
		return Integer
	case strings.Contains(n, "CHAR"), strings.Contains(n, "CLOB"), strings.Contains(n, "TEXT"):
		return Varchar
	case strings.Contains(n, "BLOB"):
		return Blob
	case strings.Contains(n, "REAL"), strings.Contains(n, "FLOA"), strings.Contains(n, "DOUB"):
		return Double
	case strings.Contains(n, "BOOL"):
		return Boolean
	case strings.Contains(n, "DATE"), strings.Contains(n, "TIME"):
		return Timestamp
	default:
		return Numeric
	}
}

// normalizeTypeName upper-cases the name, strips "(...)" modifiers and collapses
// whitespace, keeping an array "[]" suffix.
func normalizeTypeName(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return ""
	}
	isArray := strings.HasSuffix(n, "[]")
	n = strings.TrimSuffix(n, "[]")
	if open := strings.IndexByte(n, '('); open >= 0 {
		rest := ""
		if closing := strings.IndexByte(n[open:], ')'); closing >= 0 {
			rest = n[open+closing+1:]
		}
		n = n[:open] + rest
	}
	n = strings.Join(strings.Fields(n), " ")
	if isArray {
		n += "[]"
	}
	return n
}
