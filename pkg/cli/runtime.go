package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/config"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/logging"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/services"
)

// connectorUser keys the connector's pools in the connection manager.
const connectorUser = "sqlconnector"

// errNoDatasource is returned by commands that need a live database.
var errNoDatasource = errors.New("no datasource configured (set datasource.type or DATASOURCE_TYPE)")

// runtime holds the dependencies a command needs. Close releases them in
// reverse order of creation.
type runtime struct {
	cfg          *config.Config
	logger       *zap.Logger
	connMgr      *datasource.ConnectionManager
	introspector datasource.TypeIntrospector
	metadata     services.MetadataService
}

// openRuntime loads configuration and, when withDatasource is set and a
// datasource is configured, opens its introspector through the connection
// manager.
func openRuntime(ctx context.Context, cmd *cobra.Command, opts *globalOptions, withDatasource bool) (*runtime, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:    cfg,
		logger: opts.newLogger(cfg, cmd.ErrOrStderr()),
	}

	if withDatasource && cfg.Datasource.Enabled() {
		rt.connMgr = datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
			TTLMinutes:            cfg.Connections.TTLMinutes,
			MaxConnectionsPerUser: cfg.Connections.MaxConnectionsPerUser,
			PoolMaxConns:          cfg.Connections.PoolMaxConns,
			PoolMinConns:          cfg.Connections.PoolMinConns,
		}, rt.logger)

		factory := datasource.NewDatasourceAdapterFactory(rt.connMgr)
		intro, err := factory.NewTypeIntrospector(ctx, cfg.Datasource.Type, cfg.Datasource.AdapterConfig(), cfg.Datasource.ID(), connectorUser)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open %s datasource: %s", cfg.Datasource.Type, logging.SanitizeError(err))
		}
		rt.introspector = intro

		rt.logger.Info("Datasource opened",
			zap.String("type", cfg.Datasource.Type),
			zap.String("datasource_id", cfg.Datasource.ID().String()),
			zap.String("strategy", string(intro.DescribeStrategy())),
		)
	}

	rt.metadata = services.NewMetadataService(rt.introspector, rt.logger)
	return rt, nil
}

// tester returns the introspector's connection tester, if it has one.
func (rt *runtime) tester() datasource.ConnectionTester {
	if t, ok := rt.introspector.(datasource.ConnectionTester); ok {
		return t
	}
	return nil
}

func (rt *runtime) Close() {
	if rt.introspector != nil {
		if err := rt.introspector.Close(); err != nil {
			rt.logger.Warn("Failed to close introspector", zap.String("error", logging.SanitizeError(err)))
		}
	}
	if rt.connMgr != nil {
		if err := rt.connMgr.Close(); err != nil {
			rt.logger.Warn("Failed to close connection manager", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}
