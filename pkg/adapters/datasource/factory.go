package datasource

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DatasourceAdapterFactory creates adapters from the registry.
type DatasourceAdapterFactory interface {
	// NewConnectionTester creates a connection tester for the given datasource type.
	NewConnectionTester(ctx context.Context, dsType string, config map[string]any, datasourceID uuid.UUID, userID string) (ConnectionTester, error)

	// NewTypeIntrospector creates a type introspector for the given datasource type.
	NewTypeIntrospector(ctx context.Context, dsType string, config map[string]any, datasourceID uuid.UUID, userID string) (TypeIntrospector, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []DatasourceAdapterInfo
}

type registryFactory struct {
	connMgr *ConnectionManager
}

// NewDatasourceAdapterFactory returns a factory that uses the global registry.
func NewDatasourceAdapterFactory(connMgr *ConnectionManager) DatasourceAdapterFactory {
	return &registryFactory{
		connMgr: connMgr,
	}
}

func (f *registryFactory) NewConnectionTester(ctx context.Context, dsType string, config map[string]any, datasourceID uuid.UUID, userID string) (ConnectionTester, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", dsType)
	}
	return factory(ctx, config, f.connMgr, datasourceID, userID)
}

func (f *registryFactory) NewTypeIntrospector(ctx context.Context, dsType string, config map[string]any, datasourceID uuid.UUID, userID string) (TypeIntrospector, error) {
	factory := GetIntrospectorFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("type introspection not supported for type: %s", dsType)
	}
	return factory(ctx, config, f.connMgr, datasourceID, userID)
}

func (f *registryFactory) ListTypes() []DatasourceAdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements DatasourceAdapterFactory at compile time.
var _ DatasourceAdapterFactory = (*registryFactory)(nil)
