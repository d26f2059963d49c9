package datasource

import (
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/models"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sqltype"
)

// ParameterType is the resolved type of one positional placeholder.
type ParameterType struct {
	Ordinal  int // 1-based
	TypeName string
	Family   sqltype.Family
}

// StatementDescription is what an introspector learned about one statement.
// Columns are the result set columns in database order. For DML with a
// RETURNING clause they carry Returning=true.
type StatementDescription struct {
	Parameters []ParameterType
	Columns    []models.OutputColumn
}

// ParameterFamily returns the family resolved for a placeholder ordinal, or
// OTHER when the ordinal was not described.
func (d *StatementDescription) ParameterFamily(ordinal int) sqltype.Family {
	if d == nil {
		return sqltype.Other
	}
	for _, p := range d.Parameters {
		if p.Ordinal == ordinal {
			return p.Family
		}
	}
	return sqltype.Other
}

// ProcedureDescription is a procedure's declared signature from the catalog.
// Parameters keep declaration order; Ordinal is the 1-based argument position.
type ProcedureDescription struct {
	Schema     string
	Name       string
	Parameters []models.OutputColumn
}

// ColumnMetadata represents a discovered table column.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	OrdinalPosition int
}
