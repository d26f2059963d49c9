package postgres

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_ValidConfig(t *testing.T) {
	config := map[string]any{
		"host":        "db.internal",
		"port":        float64(5433), // JSON numbers are float64
		"user":        "testuser",
		"password":    "testpass",
		"database":    "testdb",
		"ssl_mode":    "disable",
		"search_path": " integration ",
	}

	cfg, err := FromMap(config)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, "testuser", cfg.User)
	assert.Equal(t, "testpass", cfg.Password)
	assert.Equal(t, "testdb", cfg.Database)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, "integration", cfg.SearchPath)
}

func TestFromMap_IntPort(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "localhost",
		"port":     5434,
		"user":     "testuser",
		"database": "testdb",
	})
	require.NoError(t, err)
	assert.Equal(t, 5434, cfg.Port)
}

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "localhost",
		"user":     "testuser",
		"database": "testdb",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultPort(), cfg.Port)
	assert.Equal(t, DefaultSSLMode(), cfg.SSLMode)
	assert.Empty(t, cfg.Password)
}

func TestFromMap_ConnStringShortCircuits(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"conn_string": "postgres://u:p@h:1/d?sslmode=disable",
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h:1/d?sslmode=disable", buildConnectionString(cfg))
}

func TestFromMap_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		errMsg string
	}{
		{"missing host", map[string]any{"user": "u", "database": "d"}, "host is required"},
		{"missing user", map[string]any{"host": "h", "database": "d"}, "user is required"},
		{"missing database", map[string]any{"host": "h", "user": "u"}, "database is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestBuildConnectionString_Escaping(t *testing.T) {
	tests := []struct {
		name     string
		password string
		encoded  []string
	}{
		{"at sign", "p@ssword", []string{"%40"}},
		{"slash", "p/ssword", []string{"%2F"}},
		{"hash and question", "p#ss?word", []string{"%23", "%3F"}},
		{"quote injection", "'; DROP TABLE users; --", []string{"%27", "%3B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connStr := buildConnectionString(&Config{
				Host:     "db.internal",
				Port:     5432,
				User:     "testuser",
				Password: tt.password,
				Database: "testdb",
				SSLMode:  "require",
			})

			assert.True(t, strings.HasPrefix(connStr, "postgresql://"))
			for _, e := range tt.encoded {
				assert.Contains(t, connStr, e)
			}

			u, err := url.Parse(connStr)
			require.NoError(t, err, "escaped connection string must parse")
			pw, _ := u.User.Password()
			assert.Equal(t, tt.password, pw)
			assert.Equal(t, "db.internal:5432", u.Host)
		})
	}
}

func TestBuildConnectionString_QueryOptions(t *testing.T) {
	connStr := buildConnectionString(&Config{
		Host:       "db.internal",
		Port:       5432,
		User:       "u",
		Database:   "d",
		SearchPath: "sales,public",
	})

	u, err := url.Parse(connStr)
	require.NoError(t, err)
	assert.Equal(t, DefaultSSLMode(), u.Query().Get("sslmode"), "empty ssl mode falls back to the default")
	assert.Equal(t, "sales,public", u.Query().Get("search_path"))
}
