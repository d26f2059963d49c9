package models

import (
	"strings"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sqltype"
)

// Direction is the mode of a stored procedure parameter.
type Direction string

const (
	DirectionIn    Direction = "IN"
	DirectionOut   Direction = "OUT"
	DirectionInOut Direction = "INOUT"
)

// ParseDirection normalizes catalog spellings ("IN OUT", "INPUT", "OUTPUT") to a
// Direction. Unrecognized values default to IN.
func ParseDirection(mode string) Direction {
	switch strings.Join(strings.Fields(strings.ToUpper(mode)), " ") {
	case "OUT", "OUTPUT":
		return DirectionOut
	case "INOUT", "IN OUT", "INPUT OUTPUT":
		return DirectionInOut
	default:
		return DirectionIn
	}
}

// Parameter is a named bindable value found in a statement.
// Positions are the 1-based ordinals of every placeholder bound to this name.
type Parameter struct {
	Name        string         `json:"name"`
	Positions   []int          `json:"positions"`
	Family      sqltype.Family `json:"type"`
	SampleValue any            `json:"sample_value,omitempty"`

	// Column is the table column the marker is compared with or assigned to, when
	// the statement makes that obvious. Resolvers without a parameter describe
	// capability use it to look up the type.
	Column string `json:"column,omitempty"`
}

// OutputColumn describes a single column returned by a statement or a procedure
// parameter. Direction is only set for procedure parameters.
type OutputColumn struct {
	Name      string         `json:"name"`
	Ordinal   int            `json:"ordinal"`
	Family    sqltype.Family `json:"type"`
	Direction Direction      `json:"direction,omitempty"`
	Returning bool           `json:"returning,omitempty"`
}
