package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/config"
)

// Adapter provides SQL Server connectivity with SQL or Azure AD service
// principal authentication.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool // true if we created the DB (no connection manager)
}

// buildConnectionString returns the driver name and DSN for the auth method.
// Service principals go through the azuresql driver registered by the azuread package.
func buildConnectionString(cfg *Config) (driver, dsn string, err error) {
	query := url.Values{}
	query.Add("database", cfg.Database)

	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}

	host := config.ResolveHostForDocker(cfg.Host)

	switch cfg.AuthMethod {
	case AuthSQL:
		return "sqlserver", fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
			url.QueryEscape(cfg.Username),
			url.QueryEscape(cfg.Password),
			host,
			cfg.Port,
			query.Encode(),
		), nil

	case AuthServicePrincipal:
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
		query.Add("password", cfg.ClientSecret)
		return "azuresql", fmt.Sprintf("sqlserver://%s:%d?%s", host, cfg.Port, query.Encode()), nil

	default:
		return "", "", fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// NewAdapter creates a SQL Server adapter with the given config.
// Uses connection manager for connection pooling when provided.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	driver, dsn, err := buildConnectionString(cfg)
	if err != nil {
		return nil, err
	}

	if connMgr == nil {
		// Fallback for direct instantiation (tests, one-off CLI runs)
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("create connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connection test failed: %w", err)
		}
		return &Adapter{config: cfg, db: db, ownedDB: true}, nil
	}

	connector, err := connMgr.GetOrCreatePool(ctx, userID, datasourceID,
		func(ctx context.Context, mc datasource.ConnectionManagerConfig) (datasource.PoolConnector, error) {
			return datasource.CreateSQLPool(ctx, driver, "mssql", dsn, mc)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.GetSQLDB(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract mssql db: %w", err)
	}

	return &Adapter{config: cfg, db: db}, nil
}

// TestConnection verifies the database is reachable with valid credentials
// and that the session landed in the configured database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	if expected := a.config.Database; expected != "" && !strings.EqualFold(currentDB, expected) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", expected, currentDB)
	}

	return nil
}

// Close releases the adapter (but NOT the DB if managed).
func (a *Adapter) Close() error {
	if a.ownedDB && a.db != nil {
		return a.db.Close()
	}
	// If using connection manager, don't close the DB - it's managed by TTL
	return nil
}

// Ensure Adapter implements ConnectionTester at compile time.
var _ datasource.ConnectionTester = (*Adapter)(nil)
