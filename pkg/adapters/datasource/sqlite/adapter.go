package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
)

// Adapter provides SQLite connectivity.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool // true if we created the DB (no connection manager)
}

// NewAdapter opens a SQLite database. If connMgr is nil, the adapter owns the
// handle and Close releases it.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string) (*Adapter, error) {
	dsn := cfg.dsn()

	if connMgr == nil {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		pinMemory(cfg, db)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connection test failed: %w", err)
		}
		if err := runInitScript(ctx, cfg, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Adapter{config: cfg, db: db, ownedDB: true}, nil
	}

	connector, err := connMgr.GetOrCreatePool(ctx, userID, datasourceID,
		func(ctx context.Context, mc datasource.ConnectionManagerConfig) (datasource.PoolConnector, error) {
			if cfg.InMemory() {
				mc.PoolMaxConns = 1
			}
			return datasource.CreateSQLPool(ctx, "sqlite", "sqlite", dsn, mc)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.GetSQLDB(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract sqlite db: %w", err)
	}
	pinMemory(cfg, db)
	if err := runInitScript(ctx, cfg, db); err != nil {
		return nil, err
	}

	return &Adapter{config: cfg, db: db}, nil
}

// runInitScript executes cfg.InitScript, if set, as one multi-statement batch.
func runInitScript(ctx context.Context, cfg *Config, db *sql.DB) error {
	if cfg.InitScript == "" {
		return nil
	}
	script, err := os.ReadFile(cfg.InitScript)
	if err != nil {
		return fmt.Errorf("read init script: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("run init script %s: %w", cfg.InitScript, err)
	}
	return nil
}

// pinMemory keeps an in-memory database on a single connection that is never
// recycled: every new connection would see a different, empty database.
func pinMemory(cfg *Config, db *sql.DB) {
	if !cfg.InMemory() {
		return
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)
}

// TestConnection verifies the database file can be opened and read.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&n); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// Close releases the adapter (but NOT the DB if managed).
func (a *Adapter) Close() error {
	if a.ownedDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ensure Adapter implements ConnectionTester at compile time.
var _ datasource.ConnectionTester = (*Adapter)(nil)
