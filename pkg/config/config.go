package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for the SQL connector.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, client secrets) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Datasource is the database statements are described against.
	Datasource DatasourceConfig `yaml:"datasource"`

	// Connections configures the datasource connection manager.
	Connections ConnectionsConfig `yaml:"connections"`

	// PlaceholderStyle is used when statements are rewritten without a
	// datasource. With a datasource the driver decides.
	PlaceholderStyle string `yaml:"placeholder_style" env:"PLACEHOLDER_STYLE" env-default:"question"`
}

// DatasourceConfig identifies the database to introspect.
type DatasourceConfig struct {
	// Type is a registered adapter type: postgres, mssql or sqlite.
	// Empty disables introspection; only rewriting is available.
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:""`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"`
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:""`
	// Path is the database file for sqlite (":memory:" for a private in-memory database).
	Path string `yaml:"path" env:"DATASOURCE_PATH" env-default:""`

	// ClientSecret authenticates an Azure service principal (mssql).
	ClientSecret string `yaml:"-" env:"DATASOURCE_CLIENT_SECRET"` // Secret - not in YAML

	// Options are passed to the adapter unchanged (search_path, encrypt,
	// auth_method, tenant_id, client_id, busy_timeout_ms, ...).
	Options map[string]any `yaml:"options"`
}

// ConnectionsConfig holds datasource connection management settings.
type ConnectionsConfig struct {
	// TTLMinutes is how long idle datasource connections are kept alive.
	TTLMinutes int `yaml:"ttl_minutes" env:"CONNECTIONS_TTL_MINUTES" env-default:"5"`
	// MaxConnectionsPerUser limits concurrent datasource pools per user.
	MaxConnectionsPerUser int `yaml:"max_connections_per_user" env:"CONNECTIONS_MAX_PER_USER" env-default:"10"`
	// PoolMaxConns is the maximum number of connections per datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"CONNECTIONS_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections per datasource pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"CONNECTIONS_POOL_MIN_CONNS" env-default:"1"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultPath, version)
}

// LoadFile reads configuration from path with environment variable overrides.
// Secrets (DATASOURCE_PASSWORD, DATASOURCE_CLIENT_SECRET) must come from
// environment variables (yaml:"-" fields).
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return cfg.finish()
}

// LoadEnv reads configuration from environment variables only.
func LoadEnv(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	if _, err := c.Style(); err != nil {
		return nil, fmt.Errorf("invalid placeholder_style: %w", err)
	}

	// Validate TLS configuration
	if err := c.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if c.BaseURL == "" {
		scheme := "http"
		if c.TLSCertPath != "" {
			scheme = "https"
		}
		c.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + c.Port,
		}).String()
	}

	return c, nil
}

// Style returns the configured placeholder style.
func (c *Config) Style() (sql.PlaceholderStyle, error) {
	return sql.ParsePlaceholderStyle(c.PlaceholderStyle)
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// Enabled reports whether a datasource is configured.
func (d *DatasourceConfig) Enabled() bool {
	return strings.TrimSpace(d.Type) != ""
}

// AdapterConfig returns the map handed to the adapter factory. Options are
// copied first so that the typed fields win.
func (d *DatasourceConfig) AdapterConfig() map[string]any {
	m := make(map[string]any, len(d.Options)+8)
	for k, v := range d.Options {
		m[k] = v
	}
	set := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	set("host", d.Host)
	set("user", d.User)
	set("password", d.Password)
	set("database", d.Database)
	set("ssl_mode", d.SSLMode)
	set("path", d.Path)
	set("client_secret", d.ClientSecret)
	if d.Port > 0 {
		m["port"] = d.Port
	}
	return m
}

// ID returns a stable identifier for the datasource, used to key pooled
// connections. Equal settings give equal ids across restarts.
func (d *DatasourceConfig) ID() uuid.UUID {
	key := strings.Join([]string{
		strings.ToLower(d.Type), d.Host, fmt.Sprint(d.Port), d.User, d.Database, d.Path,
	}, "|")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key))
}
