package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/leave"
)

func TestBuildPolicy_FromEnvironment(t *testing.T) {
	policy, err := buildPolicy(config.Config{MonthlyQuota: 2, YearlyQuota: 18, LeaveMode: "yearly_counter"})
	require.NoError(t, err)
	assert.Equal(t, leave.ModeYearlyCounter, policy.Mode)
	assert.Equal(t, 2, policy.MonthlyQuota)
	assert.Equal(t, 18, policy.YearlyQuota)

	_, err = buildPolicy(config.Config{LeaveMode: "weekly"})
	assert.ErrorContains(t, err, "LEAVE_MODE")
}

func TestBuildPolicy_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(factory.MonthlyCarryForwardJSON("hq", "HQ", 1, 15)), 0o600))

	policy, err := buildPolicy(config.Config{PolicyFile: path, MonthlyQuota: 9})
	require.NoError(t, err)
	assert.Equal(t, "hq", policy.ID)
	assert.Equal(t, 1, policy.MonthlyQuota, "file wins over quota variables")
	assert.Equal(t, 15, policy.YearlyQuota)
}

func TestOpenDataSource(t *testing.T) {
	fixture, err := openDataSource(config.Config{DataSource: config.DataSourceFixture})
	require.NoError(t, err)
	assert.NotNil(t, fixture.members)
	assert.NotNil(t, fixture.resetter)
	require.NoError(t, fixture.close())

	sqlite, err := openDataSource(config.Config{DataSource: config.DataSourceSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.NotNil(t, sqlite.members)
	require.NoError(t, sqlite.close())

	_, err = openDataSource(config.Config{DataSource: "postgres"})
	assert.Error(t, err)
}
