package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ADDR", "DATA_SOURCE", "MONTHLY_QUOTA", "KAFKA_BROKERS", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, ":3001", cfg.Addr)
	assert.Equal(t, DataSourceSQLite, cfg.DataSource)
	assert.Equal(t, 1, cfg.MonthlyQuota)
	assert.Equal(t, 12, cfg.YearlyQuota)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Zero(t, cfg.ReclassifyInterval)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("DATA_SOURCE", "MySQL")
	t.Setenv("MYSQL_DSN", "root:secret@tcp(db:3306)/hr")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RECLASSIFY_INTERVAL", "15m")
	t.Setenv("MONTHLY_QUOTA", " 2 ")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, DataSourceMySQL, cfg.DataSource)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 15*time.Minute, cfg.ReclassifyInterval)
	assert.Equal(t, 2, cfg.MonthlyQuota)
}

func TestLoad_RejectsMalformedNumbers(t *testing.T) {
	// GIVEN a quota typo and an interval without a unit
	t.Setenv("DATA_SOURCE", "")
	t.Setenv("MONTHLY_QUOTA", "2x")
	t.Setenv("RECLASSIFY_INTERVAL", "15")

	// WHEN loading
	_, err := Load(missingEnvFile(t))

	// THEN both keys are reported instead of running on defaults
	require.Error(t, err)
	assert.ErrorContains(t, err, "MONTHLY_QUOTA")
	assert.ErrorContains(t, err, "RECLASSIFY_INTERVAL")
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FIXTURE_YEAR=2031\nLEAVE_MODE=yearly_counter\n"), 0o600))
	t.Setenv("FIXTURE_YEAR", "")
	t.Setenv("LEAVE_MODE", "")
	os.Unsetenv("FIXTURE_YEAR")
	os.Unsetenv("LEAVE_MODE")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2031, cfg.FixtureYear)
	assert.Equal(t, "yearly_counter", cfg.LeaveMode)
}

func TestValidate(t *testing.T) {
	base := Config{DataSource: DataSourceSQLite, SQLitePath: "x.db"}
	assert.NoError(t, base.Validate())

	mysql := base
	mysql.DataSource = DataSourceMySQL
	assert.ErrorContains(t, mysql.Validate(), "MYSQL_DSN")

	unknown := base
	unknown.DataSource = "postgres"
	assert.ErrorContains(t, unknown.Validate(), "DATA_SOURCE")

	fixture := Config{DataSource: DataSourceFixture}
	assert.NoError(t, fixture.Validate())
}
