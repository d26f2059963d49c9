package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "PostgreSQL 12+, Aurora PostgreSQL, Supabase",
			Strategy:    datasource.StrategyNativeDescribe,
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
