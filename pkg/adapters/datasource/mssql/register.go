package mssql

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2019+, Azure SQL Database",
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
			// Pass nil logger - a no-op logger will be used internally
			return NewIntrospector(ctx, cfg, connMgr, datasourceID, userID, nil)
		},
	})
}
