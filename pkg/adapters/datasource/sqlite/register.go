package sqlite

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "SQLite 3.35+ database files (RETURNING support)",
			Strategy:    datasource.StrategyRollbackProbe,
		},
		Factory: func(ctx context.Context, config map[string]any, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string) (datasource.ConnectionTester, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, connMgr, datasourceID, userID)
		},
		IntrospectorFactory: func(ctx context.Context, config map[string]any, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string) (datasource.TypeIntrospector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewIntrospector(ctx, cfg, connMgr, datasourceID, userID, nil)
		},
	})
}
