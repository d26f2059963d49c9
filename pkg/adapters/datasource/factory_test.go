package datasource

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
)

// mockConnectionTester for testing factory
type mockConnectionTester struct{}

func (m *mockConnectionTester) TestConnection(ctx context.Context) error { return nil }
func (m *mockConnectionTester) Close() error                             { return nil }

// mockIntrospector for testing factory
type mockIntrospector struct{}

func (m *mockIntrospector) DescribeStatement(ctx context.Context, stmt *sql.ParsedStatement) (*StatementDescription, error) {
	return &StatementDescription{}, nil
}

func (m *mockIntrospector) DescribeProcedure(ctx context.Context, name string) (*ProcedureDescription, error) {
	return &ProcedureDescription{Name: name}, nil
}

func (m *mockIntrospector) ListProcedures(ctx context.Context, pattern string) ([]ProcedureDescription, error) {
	return nil, nil
}

func (m *mockIntrospector) PlaceholderStyle() sql.PlaceholderStyle { return sql.PlaceholderQuestion }
func (m *mockIntrospector) DescribeStrategy() DescribeStrategy     { return StrategyNativeDescribe }
func (m *mockIntrospector) Close() error                           { return nil }

func newTestConnectionManager(t *testing.T) *ConnectionManager {
	t.Helper()
	cm := NewConnectionManager(ConnectionManagerConfig{
		TTLMinutes:            1,
		MaxConnectionsPerUser: 5,
		PoolMaxConns:          5,
		PoolMinConns:          1,
	}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = cm.Close() })
	return cm
}

func TestFactoryPassesConnectionManager(t *testing.T) {
	connMgr := newTestConnectionManager(t)

	factory := NewDatasourceAdapterFactory(connMgr)
	require.NotNil(t, factory)

	regFactory, ok := factory.(*registryFactory)
	require.True(t, ok, "factory should be of type *registryFactory")
	assert.Equal(t, connMgr, regFactory.connMgr, "connection manager should be set in factory")
}

func TestFactoryPassesIdentityParameters(t *testing.T) {
	connMgr := newTestConnectionManager(t)

	datasourceID := uuid.New()
	userID := "test-user"

	var capturedDatasourceID uuid.UUID
	var capturedUserID string
	var capturedConnMgr *ConnectionManager
	var capturedConfig map[string]any

	mockType := "test-mock-adapter"
	Register(DatasourceAdapterRegistration{
		Info: DatasourceAdapterInfo{
			Type:        mockType,
			DisplayName: "Test Mock",
			Description: "Test adapter",
			Strategy:    StrategyNativeDescribe,
		},
		Factory: func(ctx context.Context, config map[string]any, cm *ConnectionManager, dsID uuid.UUID, uID string) (ConnectionTester, error) {
			capturedDatasourceID, capturedUserID, capturedConnMgr, capturedConfig = dsID, uID, cm, config
			return &mockConnectionTester{}, nil
		},
		IntrospectorFactory: func(ctx context.Context, config map[string]any, cm *ConnectionManager, dsID uuid.UUID, uID string) (TypeIntrospector, error) {
			capturedDatasourceID, capturedUserID, capturedConnMgr, capturedConfig = dsID, uID, cm, config
			return &mockIntrospector{}, nil
		},
	})

	factory := NewDatasourceAdapterFactory(connMgr)
	ctx := context.Background()
	config := map[string]any{"host": "db.internal"}

	t.Run("NewConnectionTester passes parameters", func(t *testing.T) {
		tester, err := factory.NewConnectionTester(ctx, mockType, config, datasourceID, userID)
		require.NoError(t, err)
		require.NotNil(t, tester)
		defer tester.Close()

		assert.Equal(t, datasourceID, capturedDatasourceID, "datasourceID should be passed to adapter")
		assert.Equal(t, userID, capturedUserID, "userID should be passed to adapter")
		assert.Equal(t, connMgr, capturedConnMgr, "connection manager should be passed to adapter")
		assert.Equal(t, config, capturedConfig)
	})

	t.Run("NewTypeIntrospector passes parameters", func(t *testing.T) {
		capturedUserID = ""
		introspector, err := factory.NewTypeIntrospector(ctx, mockType, config, datasourceID, userID)
		require.NoError(t, err)
		require.NotNil(t, introspector)
		defer introspector.Close()

		assert.Equal(t, datasourceID, capturedDatasourceID)
		assert.Equal(t, userID, capturedUserID)
		assert.Equal(t, connMgr, capturedConnMgr)
	})

	t.Run("ListTypes includes registration", func(t *testing.T) {
		assert.True(t, IsRegistered(mockType))
		var found bool
		for _, info := range factory.ListTypes() {
			if info.Type == mockType {
				found = true
				assert.Equal(t, StrategyNativeDescribe, info.Strategy)
			}
		}
		assert.True(t, found)
	})
}

func TestFactoryErrorHandling(t *testing.T) {
	factory := NewDatasourceAdapterFactory(newTestConnectionManager(t))
	ctx := context.Background()
	config := map[string]any{}
	datasourceID := uuid.New()

	t.Run("NewConnectionTester returns error for unsupported type", func(t *testing.T) {
		tester, err := factory.NewConnectionTester(ctx, "unsupported-type", config, datasourceID, "u")
		assert.Error(t, err)
		assert.Nil(t, tester)
		assert.Contains(t, err.Error(), "unsupported datasource type")
	})

	t.Run("NewTypeIntrospector returns error for unsupported type", func(t *testing.T) {
		introspector, err := factory.NewTypeIntrospector(ctx, "unsupported-type", config, datasourceID, "u")
		assert.Error(t, err)
		assert.Nil(t, introspector)
		assert.Contains(t, err.Error(), "not supported")
	})
}

func TestRegisteredAdapters_Sorted(t *testing.T) {
	Register(DatasourceAdapterRegistration{Info: DatasourceAdapterInfo{Type: "zz-test"}})
	Register(DatasourceAdapterRegistration{Info: DatasourceAdapterInfo{Type: "aa-test"}})

	types := RegisteredAdapters()
	for i := 1; i < len(types); i++ {
		assert.LessOrEqual(t, types[i-1].Type, types[i].Type)
	}
	assert.Nil(t, GetIntrospectorFactory("missing"))
	assert.Nil(t, GetFactory("missing"))
}

func TestFactoryNilConnectionManager(t *testing.T) {
	factory := NewDatasourceAdapterFactory(nil)
	require.NotNil(t, factory)

	regFactory, ok := factory.(*registryFactory)
	require.True(t, ok)
	assert.Nil(t, regFactory.connMgr, "connection manager can be nil for testing scenarios")
}

func TestStatementDescription_ParameterFamily(t *testing.T) {
	var nilDesc *StatementDescription
	assert.Equal(t, "OTHER", nilDesc.ParameterFamily(1).String())

	desc := &StatementDescription{Parameters: []ParameterType{{Ordinal: 2, TypeName: "int4"}}}
	assert.Equal(t, desc.Parameters[0].Family, desc.ParameterFamily(2))
	assert.Equal(t, "OTHER", desc.ParameterFamily(5).String())
}
