package sqlite

import (
	"fmt"
	"net/url"
	"strings"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config contains SQLite connection options.
type Config struct {
	// Path is a database file path or ":memory:".
	Path string

	// BusyTimeoutMS is how long a connection waits on a locked database.
	BusyTimeoutMS int

	// InitScript is a SQL file run every time the database is opened, usually
	// to create the schema of an in-memory database. Scripts for file
	// databases should be idempotent (CREATE TABLE IF NOT EXISTS).
	InitScript string
}

// DefaultBusyTimeoutMS returns the default busy timeout.
func DefaultBusyTimeoutMS() int {
	return 5000
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{BusyTimeoutMS: DefaultBusyTimeoutMS()}

	if path, ok := config["path"].(string); ok && strings.TrimSpace(path) != "" {
		cfg.Path = strings.TrimSpace(path)
	} else {
		return nil, fmt.Errorf("path is required")
	}

	if script, ok := config["init_script"].(string); ok {
		cfg.InitScript = strings.TrimSpace(script)
	}

	switch timeout := config["busy_timeout_ms"].(type) {
	case float64: // JSON numbers are float64
		cfg.BusyTimeoutMS = int(timeout)
	case int:
		cfg.BusyTimeoutMS = timeout
	}

	return cfg, nil
}

// InMemory reports whether the database lives only as long as its connection.
func (c *Config) InMemory() bool {
	return c.Path == MemoryPath || strings.Contains(c.Path, "mode=memory")
}

// dsn builds a modernc.org/sqlite DSN. Pragmas are applied to every new
// connection by the driver.
func (c *Config) dsn() string {
	query := url.Values{}
	query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeoutMS))
	query.Add("_pragma", "foreign_keys(1)")

	if c.Path == MemoryPath {
		return MemoryPath + "?" + query.Encode()
	}
	sep := "?"
	if strings.Contains(c.Path, "?") {
		sep = "&"
	}
	return "file:" + strings.TrimPrefix(c.Path, "file:") + sep + query.Encode()
}
