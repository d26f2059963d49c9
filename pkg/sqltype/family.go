// Package sqltype defines the closed set of SQL type families used for schema
// inference and the static mapping from a family to its JSON schema fragment.
package sqltype

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Family is one of the fixed type categories every vendor type resolves into.
type Family int

const (
	Other Family = iota // zero value: unresolved vendor types land here
	Array
	BigInt
	Binary
	Bit
	Blob
	Boolean
	Char
	Clob
	Datalink
	Date
	Decimal
	Distinct
	Double
	Float
	Integer
	JavaObject
	LongNVarchar
	LongVarbinary
	LongVarchar
	NChar
	NClob
	Null
	Numeric
	NVarchar
	Real
	Ref
	RefCursor
	RowID
	SmallInt
	SQLXML
	Struct
	Time
	TimeWithTimezone
	Timestamp
	TimestampWithTimezone
	TinyInt
	Varbinary
	Varchar

	familyCount
)

var familyNames = [familyCount]string{
	Other:                 "OTHER",
	Array:                 "ARRAY",
	BigInt:                "BIGINT",
	Binary:                "BINARY",
	Bit:                   "BIT",
	Blob:                  "BLOB",
	Boolean:               "BOOLEAN",
	Char:                  "CHAR",
	Clob:                  "CLOB",
	Datalink:              "DATALINK",
	Date:                  "DATE",
	Decimal:               "DECIMAL",
	Distinct:              "DISTINCT",
	Double:                "DOUBLE",
	Float:                 "FLOAT",
	Integer:               "INTEGER",
	JavaObject:            "JAVA_OBJECT",
	LongNVarchar:          "LONGNVARCHAR",
	LongVarbinary:         "LONGVARBINARY",
	LongVarchar:           "LONGVARCHAR",
	NChar:                 "NCHAR",
	NClob:                 "NCLOB",
	Null:                  "NULL",
	Numeric:               "NUMERIC",
	NVarchar:              "NVARCHAR",
	Real:                  "REAL",
	Ref:                   "REF",
	RefCursor:             "REF_CURSOR",
	RowID:                 "ROWID",
	SmallInt:              "SMALLINT",
	SQLXML:                "SQLXML",
	Struct:                "STRUCT",
	Time:                  "TIME",
	TimeWithTimezone:      "TIME_WITH_TIMEZONE",
	Timestamp:             "TIMESTAMP",
	TimestampWithTimezone: "TIMESTAMP_WITH_TIMEZONE",
	TinyInt:               "TINYINT",
	Varbinary:             "VARBINARY",
	Varchar:               "VARCHAR",
}

// Families returns every family in declaration order.
func Families() []Family {
	out := make([]Family, 0, familyCount)
	for f := Family(0); f < familyCount; f++ {
		out = append(out, f)
	}
	return out
}

// Valid reports whether f belongs to the closed family set.
func (f Family) Valid() bool {
	return f >= 0 && f < familyCount
}

// String returns the canonical upper-case family name.
func (f Family) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Family(%d)", int(f))
	}
	return familyNames[f]
}

// ParseFamily resolves a canonical family name, case-insensitively.
func ParseFamily(name string) (Family, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for f, n := range familyNames {
		if n == name {
			return Family(f), true
		}
	}
	return Other, false
}

// MarshalJSON encodes the family by name.
func (f Family) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON decodes a family name; unknown names are rejected.
func (f *Family) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, ok := ParseFamily(name)
	if !ok {
		return fmt.Errorf("unknown sql type family %q", name)
	}
	*f = parsed
	return nil
}
