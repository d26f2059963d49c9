package models

import (
	"bytes"
	"encoding/json"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sqltype"
)

// JSONSchemaDraft is the $schema value written on every object schema.
const JSONSchemaDraft = "http://json-schema.org/schema#"

// Schema ids used by the connector's data shapes.
const (
	SchemaIDInput  = "urn:jsonschema:sql:param:in"
	SchemaIDOutput = "urn:jsonschema:sql:param:out"
)

// Property is one named field of an ObjectSchema.
type Property struct {
	Name   string
	Schema sqltype.Fragment
}

// ObjectSchema is a JSON object schema whose properties keep statement order.
type ObjectSchema struct {
	ID         string
	Title      string
	Properties []Property
}

// Property returns the named property schema.
func (s *ObjectSchema) Property(name string) (sqltype.Fragment, bool) {
	if s == nil {
		return sqltype.Fragment{}, false
	}
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return sqltype.Fragment{}, false
}

// Names returns the property names in order.
func (s *ObjectSchema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		names[i] = p.Name
	}
	return names
}

// MarshalJSON writes properties in declaration order, which encoding/json would
// otherwise sort.
func (s ObjectSchema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"$schema":`)
	writeJSON(&buf, JSONSchemaDraft)
	buf.WriteString(`,"type":"object"`)
	if s.ID != "" {
		buf.WriteString(`,"id":`)
		writeJSON(&buf, s.ID)
	}
	if s.Title != "" {
		buf.WriteString(`,"title":`)
		writeJSON(&buf, s.Title)
	}
	buf.WriteString(`,"properties":{`)
	for i, p := range s.Properties {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSON(&buf, p.Name)
		buf.WriteByte(':')
		frag, err := json.Marshal(p.Schema)
		if err != nil {
			return nil, err
		}
		buf.Write(frag)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, s string) {
	// Marshalling a string cannot fail.
	data, _ := json.Marshal(s)
	buf.Write(data)
}

// CollectionSchema is an array whose items are an ObjectSchema.
type CollectionSchema struct {
	Items *ObjectSchema
}

// MarshalJSON writes {"$schema":..., "type":"array", "items":{...}}.
func (c CollectionSchema) MarshalJSON() ([]byte, error) {
	type collectionJSON struct {
		Schema string        `json:"$schema"`
		Type   string        `json:"type"`
		Items  *ObjectSchema `json:"items,omitempty"`
	}
	return json.Marshal(collectionJSON{Schema: JSONSchemaDraft, Type: sqltype.TypeArray, Items: c.Items})
}

// ProcedureDescriptor describes one stored procedure found by discovery.
type ProcedureDescriptor struct {
	Name         string         `json:"name"`
	InputSchema  *ObjectSchema  `json:"input_schema,omitempty"`
	OutputSchema *ObjectSchema  `json:"output_schema,omitempty"`
	Parameters   []OutputColumn `json:"parameters"`
}

// SyndesisMetadata is the derived metadata for one statement (or one discovery
// request) handed to the platform's configuration UI and data mapper.
type SyndesisMetadata struct {
	Kind             string                `json:"kind,omitempty"`
	IsBatch          bool                  `json:"is_batch"`
	RewrittenSQL     string                `json:"rewritten_sql,omitempty"`
	Parameters       []Parameter           `json:"parameters,omitempty"`
	Columns          []OutputColumn        `json:"columns,omitempty"`
	InputSchema      *ObjectSchema         `json:"input_schema,omitempty"`
	ElementSchema    *ObjectSchema         `json:"element_schema,omitempty"`
	CollectionSchema *CollectionSchema     `json:"collection_schema,omitempty"`
	Procedures       []ProcedureDescriptor `json:"procedures,omitempty"`
	DescribeStrategy string                `json:"describe_strategy,omitempty"`
}
