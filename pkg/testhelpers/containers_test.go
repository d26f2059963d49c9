//go:build integration

package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTestDB_FixturesApplied(t *testing.T) {
	testDB := GetTestDB(t)
	ctx := context.Background()

	var tables int
	err := testDB.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name IN ('address', 'test')").
		Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 2, tables)

	var procs int
	err = testDB.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM information_schema.routines WHERE routine_schema = 'public' AND routine_type = 'PROCEDURE'").
		Scan(&procs)
	require.NoError(t, err)
	assert.Equal(t, 3, procs)
}

func TestTestDB_ConfigMap(t *testing.T) {
	testDB := GetTestDB(t)

	cfg := testDB.ConfigMap()
	assert.Equal(t, testDB.Host, cfg["host"])
	assert.Equal(t, float64(testDB.Port), cfg["port"])
	assert.Equal(t, "disable", cfg["ssl_mode"])
}
