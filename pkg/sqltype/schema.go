package sqltype

import "encoding/json"

// JSON schema type and format names emitted by SchemaFor.
const (
	TypeArray   = "array"
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeNull    = "null"
	TypeNumber  = "number"
	TypeObject  = "object"
	TypeString  = "string"

	FormatDateTime = "date-time"
)

// Fragment is a minimal JSON schema describing one field. The zero value is the
// unconstrained schema {}.
type Fragment struct {
	Type   string
	Format string
	Items  *Fragment
}

// Equal compares two fragments by value.
func (f Fragment) Equal(o Fragment) bool {
	if f.Type != o.Type || f.Format != o.Format {
		return false
	}
	if f.Items == nil || o.Items == nil {
		return f.Items == nil && o.Items == nil
	}
	return f.Items.Equal(*o.Items)
}

// IsAny reports whether the fragment places no constraint on the value.
func (f Fragment) IsAny() bool {
	return f.Type == "" && f.Format == "" && f.Items == nil
}

type fragmentJSON struct {
	Type   string    `json:"type,omitempty"`
	Format string    `json:"format,omitempty"`
	Items  *Fragment `json:"items,omitempty"`
}

// MarshalJSON emits only the keys that are set.
func (f Fragment) MarshalJSON() ([]byte, error) {
	return json.Marshal(fragmentJSON(f))
}

// UnmarshalJSON reads a fragment written by MarshalJSON.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var raw fragmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Fragment(raw)
	return nil
}

// schemaTable is indexed by Family and never written after initialization.
// SchemaFor hands out copies so callers cannot mutate it.
var schemaTable = [familyCount]Fragment{
	Array: {Type: TypeArray},

	Binary:        {Type: TypeArray, Items: &Fragment{Type: TypeInteger}},
	Blob:          {Type: TypeArray, Items: &Fragment{Type: TypeInteger}},
	LongVarbinary: {Type: TypeArray, Items: &Fragment{Type: TypeInteger}},
	Varbinary:     {Type: TypeArray, Items: &Fragment{Type: TypeInteger}},

	Bit:     {Type: TypeBoolean},
	Boolean: {Type: TypeBoolean},

	Char:         {Type: TypeString},
	Clob:         {Type: TypeString},
	Datalink:     {Type: TypeString},
	LongNVarchar: {Type: TypeString},
	LongVarchar:  {Type: TypeString},
	NChar:        {Type: TypeString},
	NClob:        {Type: TypeString},
	NVarchar:     {Type: TypeString},
	RowID:        {Type: TypeString},
	SQLXML:       {Type: TypeString},
	Varchar:      {Type: TypeString},

	Date:                  {Type: TypeString, Format: FormatDateTime},
	Time:                  {Type: TypeString, Format: FormatDateTime},
	Timestamp:             {Type: TypeString, Format: FormatDateTime},
	TimestampWithTimezone: {Type: TypeString, Format: FormatDateTime},
	TimeWithTimezone:      {Type: TypeString, Format: FormatDateTime},

	Decimal: {Type: TypeNumber},
	Double:  {Type: TypeNumber},
	Float:   {Type: TypeNumber},
	Numeric: {Type: TypeNumber},
	Real:    {Type: TypeNumber},

	Integer:  {Type: TypeInteger},
	BigInt:   {Type: TypeInteger},
	SmallInt: {Type: TypeInteger},
	TinyInt:  {Type: TypeInteger},

	Null: {Type: TypeNull},

	// Distinct, JavaObject, Other, Ref, RefCursor and Struct stay {}.
}

// SchemaFor returns the schema fragment for a family. Families outside the
// closed set map to the unconstrained fragment.
func SchemaFor(f Family) Fragment {
	if !f.Valid() {
		return Fragment{}
	}
	frag := schemaTable[f]
	if frag.Items != nil {
		items := *frag.Items
		frag.Items = &items
	}
	return frag
}
