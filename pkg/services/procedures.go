package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/models"
)

// DiscoverProcedures returns one descriptor per procedure whose name starts
// with pattern. An empty pattern returns every procedure in the catalog.
func (s *metadataService) DiscoverProcedures(ctx context.Context, pattern string) (*models.SyndesisMetadata, error) {
	if s.introspector == nil {
		return nil, fmt.Errorf("no datasource configured")
	}

	procs, err := s.introspector.ListProcedures(ctx, pattern)
	if err != nil {
		return nil, err
	}

	descriptors := make([]models.ProcedureDescriptor, 0, len(procs))
	for _, p := range procs {
		descriptors = append(descriptors, procedureDescriptor(p))
	}

	s.logger.Info("discovered procedures",
		zap.String("pattern", pattern),
		zap.Int("count", len(descriptors)),
	)
	return &models.SyndesisMetadata{
		Procedures:       descriptors,
		DescribeStrategy: string(s.introspector.DescribeStrategy()),
	}, nil
}

func procedureDescriptor(p datasource.ProcedureDescription) models.ProcedureDescriptor {
	in, out := partitionByDirection(p.Parameters)
	params := p.Parameters
	if params == nil {
		params = []models.OutputColumn{}
	}
	return models.ProcedureDescriptor{
		Name:         p.Name,
		InputSchema:  columnSchema(models.SchemaIDInput, in),
		OutputSchema: columnSchema(models.SchemaIDOutput, out),
		Parameters:   params,
	}
}
