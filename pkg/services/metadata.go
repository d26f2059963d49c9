package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/models"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sqltype"
)

// DescribeRequest is one metadata request. Procedure selects a procedure for
// discovery-style lookups; Pattern filters discovery when Procedure is empty.
type DescribeRequest struct {
	SQL       string         `json:"sql"`
	IsBatch   bool           `json:"is_batch"`
	Pattern   string         `json:"pattern,omitempty"`
	Procedure string         `json:"procedure,omitempty"`
	Samples   map[string]any `json:"samples,omitempty"`
}

// MetadataService derives input and output data shapes for connector statements.
type MetadataService interface {
	// Describe parses the statement, resolves its types against the datasource
	// and assembles the schemas. Malformed text never reaches the database.
	Describe(ctx context.Context, req DescribeRequest) (*models.SyndesisMetadata, error)

	// Rewrite parses the statement without a datasource. Parameter families
	// stay OTHER and no output schema is produced.
	Rewrite(req DescribeRequest, style sql.PlaceholderStyle) (*models.SyndesisMetadata, error)

	// DiscoverProcedures lists procedures whose name starts with pattern.
	DiscoverProcedures(ctx context.Context, pattern string) (*models.SyndesisMetadata, error)
}

type metadataService struct {
	introspector datasource.TypeIntrospector
	logger       *zap.Logger
}

// NewMetadataService creates a metadata service over an introspector. The
// introspector may be nil for a service that only rewrites.
// If logger is nil, a no-op logger is used.
func NewMetadataService(introspector datasource.TypeIntrospector, logger *zap.Logger) MetadataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &metadataService{
		introspector: introspector,
		logger:       logger.Named("metadata"),
	}
}

var _ MetadataService = (*metadataService)(nil)

func (s *metadataService) Describe(ctx context.Context, req DescribeRequest) (*models.SyndesisMetadata, error) {
	if s.introspector == nil {
		return nil, fmt.Errorf("no datasource configured")
	}
	if strings.TrimSpace(req.SQL) == "" {
		if req.Procedure != "" {
			return s.describeProcedure(ctx, req.Procedure)
		}
		return s.DiscoverProcedures(ctx, req.Pattern)
	}

	stmt, err := s.parse(req, s.introspector.PlaceholderStyle())
	if err != nil {
		return nil, err
	}

	if stmt.Kind == sql.KindCall {
		return s.describeCall(ctx, stmt)
	}

	desc, err := s.introspector.DescribeStatement(ctx, stmt)
	if err != nil {
		s.logger.Debug("introspection failed",
			zap.String("kind", stmt.Kind.String()),
			zap.Error(err),
		)
		return nil, err
	}

	meta := s.baseMetadata(stmt)
	for i := range meta.Parameters {
		meta.Parameters[i].Family = desc.ParameterFamily(meta.Parameters[i].Positions[0])
	}
	meta.Columns = orderColumns(desc.Columns)
	meta.InputSchema = inputSchema(meta.Parameters)
	meta.ElementSchema = columnSchema(models.SchemaIDOutput, meta.Columns)
	meta.CollectionSchema = collectionOf(meta.ElementSchema)

	s.logger.Info("described statement",
		zap.String("kind", meta.Kind),
		zap.Bool("is_batch", meta.IsBatch),
		zap.Int("parameters", len(meta.Parameters)),
		zap.Int("columns", len(meta.Columns)),
		zap.Strings("untyped", untypedProperties(meta.InputSchema)),
		zap.String("strategy", meta.DescribeStrategy),
	)
	return meta, nil
}

func (s *metadataService) Rewrite(req DescribeRequest, style sql.PlaceholderStyle) (*models.SyndesisMetadata, error) {
	stmt, err := s.parse(req, style)
	if err != nil {
		return nil, err
	}
	meta := s.baseMetadata(stmt)
	meta.DescribeStrategy = ""
	for i := range meta.Parameters {
		meta.Parameters[i].Family = sqltype.Other
	}
	meta.InputSchema = inputSchema(meta.Parameters)
	return meta, nil
}

func (s *metadataService) parse(req DescribeRequest, style sql.PlaceholderStyle) (*sql.ParsedStatement, error) {
	stmt, err := sql.Parse(req.SQL, req.IsBatch, style)
	if err != nil {
		return nil, err
	}
	if err := sql.ApplySamples(stmt, req.Samples); err != nil {
		return nil, err
	}
	if rejected := sql.CheckSampleValues(stmt.Parameters); len(rejected) > 0 {
		s.logger.Warn("sample value rejected",
			zap.String("parameter", rejected[0].ParamName),
			zap.String("fingerprint", rejected[0].Fingerprint),
		)
		return nil, rejected[0]
	}
	return stmt, nil
}

func (s *metadataService) baseMetadata(stmt *sql.ParsedStatement) *models.SyndesisMetadata {
	params := make([]models.Parameter, len(stmt.Parameters))
	copy(params, stmt.Parameters)

	meta := &models.SyndesisMetadata{
		Kind:         stmt.Kind.String(),
		IsBatch:      stmt.IsBatch,
		RewrittenSQL: stmt.RewrittenText,
		Parameters:   params,
	}
	if s.introspector != nil {
		meta.DescribeStrategy = string(s.introspector.DescribeStrategy())
	}
	return meta
}

// describeCall types a CALL statement from the procedure catalog. A parameter
// takes the family of the declared argument whose position it fills; literal
// arguments keep their slot.
func (s *metadataService) describeCall(ctx context.Context, stmt *sql.ParsedStatement) (*models.SyndesisMetadata, error) {
	proc, err := s.introspector.DescribeProcedure(ctx, stmt.Procedure)
	if err != nil {
		return nil, err
	}

	meta := s.baseMetadata(stmt)
	for i := range meta.Parameters {
		meta.Parameters[i].Family = sqltype.Other
		pos, ok := stmt.CallArguments[meta.Parameters[i].Name]
		if !ok {
			continue
		}
		for _, arg := range proc.Parameters {
			if arg.Ordinal == pos {
				meta.Parameters[i].Family = arg.Family
				break
			}
		}
	}

	in, out := partitionByDirection(proc.Parameters)
	meta.Columns = out
	meta.InputSchema = columnSchema(models.SchemaIDInput, in)
	meta.ElementSchema = columnSchema(models.SchemaIDOutput, out)
	meta.CollectionSchema = collectionOf(meta.ElementSchema)

	s.logger.Info("described procedure call",
		zap.String("procedure", stmt.Procedure),
		zap.Int("in", len(in)),
		zap.Int("out", len(out)),
	)
	return meta, nil
}

func (s *metadataService) describeProcedure(ctx context.Context, name string) (*models.SyndesisMetadata, error) {
	proc, err := s.introspector.DescribeProcedure(ctx, name)
	if err != nil {
		return nil, err
	}
	return &models.SyndesisMetadata{
		Kind:             sql.KindCall.String(),
		Procedures:       []models.ProcedureDescriptor{procedureDescriptor(*proc)},
		DescribeStrategy: string(s.introspector.DescribeStrategy()),
	}, nil
}

// orderColumns puts ordinary output first and RETURNING output after it,
// renumbering ordinals to match.
func orderColumns(columns []models.OutputColumn) []models.OutputColumn {
	if len(columns) == 0 {
		return nil
	}
	ordered := make([]models.OutputColumn, 0, len(columns))
	for _, c := range columns {
		if !c.Returning {
			ordered = append(ordered, c)
		}
	}
	for _, c := range columns {
		if c.Returning {
			ordered = append(ordered, c)
		}
	}
	for i := range ordered {
		ordered[i].Ordinal = i + 1
	}
	return ordered
}

// partitionByDirection splits procedure arguments: IN feeds the input shape,
// OUT and INOUT feed the output shape.
func partitionByDirection(args []models.OutputColumn) (in, out []models.OutputColumn) {
	for _, a := range args {
		switch a.Direction {
		case models.DirectionOut, models.DirectionInOut:
			out = append(out, a)
		default:
			in = append(in, a)
		}
	}
	return in, out
}

func inputSchema(params []models.Parameter) *models.ObjectSchema {
	if len(params) == 0 {
		return nil
	}
	schema := &models.ObjectSchema{ID: models.SchemaIDInput, Properties: make([]models.Property, len(params))}
	for i, p := range params {
		schema.Properties[i] = models.Property{Name: p.Name, Schema: sqltype.SchemaFor(p.Family)}
	}
	return schema
}

// untypedProperties names the properties whose schema accepts any value.
func untypedProperties(schema *models.ObjectSchema) []string {
	if schema == nil {
		return nil
	}
	var names []string
	for _, p := range schema.Properties {
		if p.Schema.IsAny() {
			names = append(names, p.Name)
		}
	}
	return names
}

func columnSchema(id string, columns []models.OutputColumn) *models.ObjectSchema {
	if len(columns) == 0 {
		return nil
	}
	schema := &models.ObjectSchema{ID: id, Properties: make([]models.Property, len(columns))}
	for i, c := range columns {
		schema.Properties[i] = models.Property{Name: c.Name, Schema: sqltype.SchemaFor(c.Family)}
	}
	return schema
}

func collectionOf(element *models.ObjectSchema) *models.CollectionSchema {
	if element == nil {
		return nil
	}
	return &models.CollectionSchema{Items: element}
}

