// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DataSourceSQLite  = "sqlite"
	DataSourceMySQL   = "mysql"
	DataSourceFixture = "fixture"
)

type Config struct {
	Addr        string
	Environment string
	LogLevel    string

	DataSource string
	SQLitePath string
	MySQLDSN   string

	PolicyFile   string
	LeaveMode    string
	MonthlyQuota int
	YearlyQuota  int

	RedisAddr       string
	SummaryCacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	ReclassifyInterval time.Duration
	CORSOrigins        []string
	FixtureYear        int
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over .env.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var bad []error
	cfg := Config{
		Addr:        getEnv("APP_ADDR", ":3001"),
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DataSource: strings.ToLower(getEnv("DATA_SOURCE", DataSourceSQLite)),
		SQLitePath: getEnv("SQLITE_PATH", "leaves.db"),
		MySQLDSN:   getEnv("MYSQL_DSN", ""),

		PolicyFile:   getEnv("POLICY_FILE", ""),
		LeaveMode:    getEnv("LEAVE_MODE", ""),
		MonthlyQuota: getEnvInt("MONTHLY_QUOTA", 1, &bad),
		YearlyQuota:  getEnvInt("YEARLY_QUOTA", 12, &bad),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		SummaryCacheTTL: getEnvDuration("SUMMARY_CACHE_TTL", 24*time.Hour, &bad),

		KafkaBrokers: getEnvSlice("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "leave.flag.changed"),

		ReclassifyInterval: getEnvDuration("RECLASSIFY_INTERVAL", 0, &bad),
		CORSOrigins:        getEnvSlice("CORS_ORIGINS"),
		FixtureYear:        getEnvInt("FIXTURE_YEAR", time.Now().Year(), &bad),
	}
	if len(bad) > 0 {
		return Config{}, fmt.Errorf("configuration validation failed: %w", errors.Join(bad...))
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks combinations Load cannot default away.
func (c Config) Validate() error {
	switch c.DataSource {
	case DataSourceSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when DATA_SOURCE=sqlite")
		}
	case DataSourceMySQL:
		if strings.TrimSpace(c.MySQLDSN) == "" {
			return fmt.Errorf("MYSQL_DSN is required when DATA_SOURCE=mysql")
		}
	case DataSourceFixture:
	default:
		return fmt.Errorf("DATA_SOURCE must be one of sqlite, mysql, fixture (got %q)", c.DataSource)
	}
	if c.SummaryCacheTTL < 0 {
		return fmt.Errorf("SUMMARY_CACHE_TTL must not be negative")
	}
	if c.ReclassifyInterval < 0 {
		return fmt.Errorf("RECLASSIFY_INTERVAL must not be negative")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvInt appends to bad instead of silently using fallback for a value
// that does not parse.
func getEnvInt(key string, fallback int, bad *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		*bad = append(*bad, fmt.Errorf("%s must be an integer (got %q)", key, value))
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration, bad *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		*bad = append(*bad, fmt.Errorf("%s must be a duration like 15m (got %q)", key, value))
		return fallback
	}
	return parsed
}

func getEnvSlice(key string) []string {
	value := getEnv(key, "")
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
