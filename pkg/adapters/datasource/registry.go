package datasource

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// DatasourceAdapterInfo describes a registered adapter.
type DatasourceAdapterInfo struct {
	Type        string           `json:"type"`         // "postgres", "mssql", "sqlite"
	DisplayName string           `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string           `json:"description"`
	Strategy    DescribeStrategy `json:"describe_strategy"`
}

// AdapterFactory builds an adapter from a config map. Pools are shared through
// connMgr and keyed by datasource and user.
type AdapterFactory[T any] func(ctx context.Context, config map[string]any, connMgr *ConnectionManager, datasourceID uuid.UUID, userID string) (T, error)

// DatasourceAdapterRegistration contains info + factories for creating adapters.
type DatasourceAdapterRegistration struct {
	Info                DatasourceAdapterInfo
	Factory             AdapterFactory[ConnectionTester]
	IntrospectorFactory AdapterFactory[TypeIntrospector]
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetFactory returns the connection tester factory for a datasource type.
// Returns nil if type is not registered.
func GetFactory(dsType string) AdapterFactory[ConnectionTester] {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.Factory
	}
	return nil
}

// GetIntrospectorFactory returns the introspector factory for a datasource type.
// Returns nil if type is not registered.
func GetIntrospectorFactory(dsType string) AdapterFactory[TypeIntrospector] {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.IntrospectorFactory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
