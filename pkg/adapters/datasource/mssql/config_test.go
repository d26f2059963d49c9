package mssql

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_SQLAuth(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":                     "sql.internal",
		"port":                     float64(14330),
		"database":                 "sales",
		"user":                     "sa",
		"password":                 "secret",
		"encrypt":                  "false",
		"trust_server_certificate": true,
	})
	require.NoError(t, err)

	assert.Equal(t, AuthSQL, cfg.AuthMethod)
	assert.Equal(t, "sa", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 14330, cfg.Port)
	assert.False(t, cfg.Encrypt)
	assert.True(t, cfg.TrustServerCertificate)
	assert.Equal(t, DefaultConnectionTimeout(), cfg.ConnectionTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestFromMap_ServicePrincipalDetectedFromClientID(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":          "srv.database.windows.net",
		"database":      "sales",
		"tenant_id":     "tenant",
		"client_id":     "client",
		"client_secret": "shh",
	})
	require.NoError(t, err)
	assert.Equal(t, AuthServicePrincipal, cfg.AuthMethod)
	assert.True(t, cfg.Encrypt, "encrypt defaults on")
	assert.NoError(t, cfg.Validate())
}

func TestFromMap_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		errMsg string
	}{
		{"missing host", map[string]any{"database": "d", "user": "u"}, "host is required"},
		{"missing database", map[string]any{"host": "h", "user": "u"}, "database is required"},
		{"no credentials", map[string]any{"host": "h", "database": "d"}, "could not auto-detect"},
		{"unknown method", map[string]any{"host": "h", "database": "d", "auth_method": "user_delegation"}, "invalid auth method"},
		{"partial principal", map[string]any{"host": "h", "database": "d", "client_id": "c"}, "tenant_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_Port(t *testing.T) {
	cfg := &Config{Host: "h", Database: "d", Port: 70000, AuthMethod: AuthSQL, Username: "u"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestBuildConnectionString_SQLAuth(t *testing.T) {
	driver, dsn, err := buildConnectionString(&Config{
		Host:       "sql.internal",
		Port:       1433,
		Database:   "sales",
		AuthMethod: AuthSQL,
		Username:   "sa",
		Password:   "p@ss/w#rd",
		Encrypt:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", driver)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/w#rd", pw)
	assert.Equal(t, "sales", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
}

func TestBuildConnectionString_ServicePrincipal(t *testing.T) {
	driver, dsn, err := buildConnectionString(&Config{
		Host:         "srv.database.windows.net",
		Port:         1433,
		Database:     "sales",
		AuthMethod:   AuthServicePrincipal,
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "shh",
	})
	require.NoError(t, err)
	assert.Equal(t, "azuresql", driver)
	assert.True(t, strings.HasPrefix(dsn, "sqlserver://srv.database.windows.net:1433?"))

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "ActiveDirectoryServicePrincipal", u.Query().Get("fedauth"))
	assert.Equal(t, "client@tenant", u.Query().Get("user id"))
}

func TestBuildConnectionString_UnknownMethod(t *testing.T) {
	_, _, err := buildConnectionString(&Config{AuthMethod: "kerberos"})
	assert.Error(t, err)
}
