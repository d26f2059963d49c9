package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/logging"
)

const (
	DefaultConnectionTTLMinutes  = 5
	DefaultCleanupInterval       = 1 * time.Minute
	DefaultMaxConnectionsPerUser = 10
	DefaultPoolMaxConns          = 10
	DefaultPoolMinConns          = 1
)

// ConnectionManagerConfig holds configuration for the connection manager
type ConnectionManagerConfig struct {
	TTLMinutes            int
	MaxConnectionsPerUser int
	PoolMaxConns          int32
	PoolMinConns          int32
}

// PoolOpener opens a new pool for a key that has none cached.
type PoolOpener func(ctx context.Context, cfg ConnectionManagerConfig) (PoolConnector, error)

// ConnectionManager caches connection pools per datasource and user with
// TTL-based cleanup. Pool creation and health checks are attempted once: a
// failure is returned to the caller, who owns any retry policy.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*ManagedConnection // key: "{userId}:{datasourceId}"
	cfg         ConnectionManagerConfig
	ttl         time.Duration
	stopped     bool
	stopChan    chan struct{}
	logger      *zap.Logger
}

// ManagedConnection represents a pooled connection with access control
type ManagedConnection struct {
	pool     PoolConnector
	lastUsed time.Time
	mu       sync.Mutex // Per-connection mutex to prevent concurrent access issues
}

// NewConnectionManager creates a connection manager with the given configuration.
// Starts a background cleanup goroutine that runs until Close() is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultConnectionTTLMinutes
	}
	if cfg.MaxConnectionsPerUser <= 0 {
		cfg.MaxConnectionsPerUser = DefaultMaxConnectionsPerUser
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns <= 0 {
		cfg.PoolMinConns = DefaultPoolMinConns
	}

	manager := &ConnectionManager{
		connections: make(map[string]*ManagedConnection),
		cfg:         cfg,
		ttl:         time.Duration(cfg.TTLMinutes) * time.Minute,
		stopChan:    make(chan struct{}),
		logger:      logger,
	}

	go manager.cleanupExpiredConnections()
	return manager
}

// Config returns the effective configuration after defaults were applied.
func (m *ConnectionManager) Config() ConnectionManagerConfig {
	return m.cfg
}

func poolKey(userID string, datasourceID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", userID, datasourceID)
}

// splitKey returns the user and datasource parts of a pool key. User IDs may
// contain ':' so the datasource is taken from the right.
func splitKey(key string) (userID, datasourceID string) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

// countConnectionsForUser counts active connections for a specific user.
// Caller must hold m.mu lock.
func (m *ConnectionManager) countConnectionsForUser(userID string) int {
	count := 0
	for key := range m.connections {
		if u, _ := splitKey(key); u == userID {
			count++
		}
	}
	return count
}

// GetOrCreatePool gets or creates a connection pool for the given datasource.
// A cached pool that fails its ping is closed and replaced by a fresh one.
// Returns error if user has reached connection limit or pool creation fails.
func (m *ConnectionManager) GetOrCreatePool(
	ctx context.Context,
	userID string,
	datasourceID uuid.UUID,
	open PoolOpener,
) (PoolConnector, error) {
	key := poolKey(userID, datasourceID)

	// Try existing connection with read lock (fast path)
	m.mu.RLock()
	managed, exists := m.connections[key]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()
		if err := managed.pool.Ping(ctx); err != nil {
			m.logger.Warn("connection unhealthy, recreating",
				zap.String("key", key),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock() // Unlock before calling removeConnection
			m.removeConnection(key)
			return m.createNewPool(ctx, key, userID, datasourceID, open)
		}

		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.pool, nil
	}

	return m.createNewPool(ctx, key, userID, datasourceID, open)
}

// createNewPool opens a new pool.
// Caller must NOT hold any locks (this method acquires write lock).
func (m *ConnectionManager) createNewPool(
	ctx context.Context,
	key string,
	userID string,
	datasourceID uuid.UUID,
	open PoolOpener,
) (PoolConnector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("connection manager is closed")
	}

	// Double-check after acquiring write lock (another goroutine may have created it)
	if managed, exists := m.connections[key]; exists && managed != nil {
		managed.mu.Lock()
		defer managed.mu.Unlock()
		managed.lastUsed = time.Now()
		return managed.pool, nil
	}

	userConnCount := m.countConnectionsForUser(userID)
	if userConnCount >= m.cfg.MaxConnectionsPerUser {
		m.logger.Warn("user reached max connections limit",
			zap.String("userID", userID),
			zap.Int("current", userConnCount),
			zap.Int("max", m.cfg.MaxConnectionsPerUser),
		)
		return nil, fmt.Errorf("user %s has reached maximum connections limit (%d)", userID, m.cfg.MaxConnectionsPerUser)
	}

	pool, err := open(ctx, m.cfg)
	if err != nil {
		m.logger.Error("failed to create pool",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to create pool for %s: %w", key, err)
	}

	m.connections[key] = &ManagedConnection{
		pool:     pool,
		lastUsed: time.Now(),
	}

	m.logger.Info("created new connection pool",
		zap.String("key", key),
		zap.String("type", pool.GetType()),
		zap.String("userID", userID),
		zap.String("datasourceID", datasourceID.String()),
		zap.Int("userTotalConnections", userConnCount+1),
	)

	return pool, nil
}

// removeConnection removes a connection from the pool and closes it.
// Caller must NOT hold m.mu lock (this method acquires write lock).
func (m *ConnectionManager) removeConnection(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.connections[key]; exists && managed != nil {
		m.closePool(key, managed.pool)
		delete(m.connections, key)
		m.logger.Debug("removed connection",
			zap.String("key", key),
		)
	}
}

func (m *ConnectionManager) closePool(key string, pool PoolConnector) {
	if pool == nil {
		return
	}
	if err := pool.Close(); err != nil {
		m.logger.Warn("failed to close pool",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)),
		)
	}
}

// cleanupExpiredConnections runs periodically to remove expired connections.
// Runs in a background goroutine until stopChan is closed.
func (m *ConnectionManager) cleanupExpiredConnections() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup(time.Now())
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup removes connections that haven't been used within TTL.
// Uses lock ordering: manager lock → connection lock to prevent deadlocks.
func (m *ConnectionManager) performCleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	var expiredKeys []string
	for key, managed := range m.connections {
		if managed == nil {
			continue
		}
		managed.mu.Lock()
		idleTime := now.Sub(managed.lastUsed)
		managed.mu.Unlock()

		if idleTime > m.ttl {
			expiredKeys = append(expiredKeys, key)
			m.logger.Debug("marking connection for cleanup",
				zap.String("key", key),
				zap.Duration("idleTime", idleTime),
				zap.Duration("ttl", m.ttl),
			)
		}
	}

	for _, key := range expiredKeys {
		m.closePool(key, m.connections[key].pool)
		delete(m.connections, key)
	}

	if len(expiredKeys) > 0 {
		m.logger.Info("cleaned up expired connections",
			zap.Int("count", len(expiredKeys)),
			zap.Int("remaining", len(m.connections)),
		)
	}
}

// Close closes all connections in the manager and stops the cleanup goroutine.
// This method is idempotent and safe to call multiple times.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for key, managed := range m.connections {
		if managed != nil {
			m.closePool(key, managed.pool)
		}
	}

	m.connections = make(map[string]*ManagedConnection)
	m.logger.Info("connection manager closed")
	return nil
}

// GetStats returns statistics about the connection manager.
// Safe to call concurrently.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := ConnectionStats{
		TotalConnections:        len(m.connections),
		MaxConnectionsPerUser:   m.cfg.MaxConnectionsPerUser,
		TTLMinutes:              int(m.ttl.Minutes()),
		ConnectionsByDatasource: make(map[string]int),
		ConnectionsByUser:       make(map[string]int),
	}

	for key, managed := range m.connections {
		userID, datasourceID := splitKey(key)
		stats.ConnectionsByUser[userID]++
		stats.ConnectionsByDatasource[datasourceID]++

		if managed != nil {
			managed.mu.Lock()
			idleSeconds := int(now.Sub(managed.lastUsed).Seconds())
			managed.mu.Unlock()
			if idleSeconds > stats.OldestIdleSeconds {
				stats.OldestIdleSeconds = idleSeconds
			}
		}
	}

	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalConnections        int            `json:"total_connections"`
	MaxConnectionsPerUser   int            `json:"max_connections_per_user"`
	TTLMinutes              int            `json:"ttl_minutes"`
	ConnectionsByDatasource map[string]int `json:"connections_by_datasource"`
	ConnectionsByUser       map[string]int `json:"connections_by_user"`
	OldestIdleSeconds       int            `json:"oldest_idle_seconds"`
}
