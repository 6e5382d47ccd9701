/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env + environment), parse flags
  2. Build the zap logger
  3. Resolve the leave policy (POLICY_FILE or MONTHLY_QUOTA/YEARLY_QUOTA)
  4. Open the data source (sqlite, mysql or fixture)
  5. Wire optional Redis summary cache and Kafka publisher
  6. Create ledger, handler, router and the reclassification scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    Listen address (overrides APP_ADDR, default :3001)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for an in-memory database

DATA SOURCES (DATA_SOURCE):
  sqlite   Default. File database at SQLITE_PATH
  mysql    Existing HR database at MYSQL_DSN
  fixture  In-memory store seeded with the team-demo scenario

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close Kafka writer, Redis client and database
  5. Exit

EXAMPLES:
  ./server -db="./data/leaves.db"
  DATA_SOURCE=fixture ./server -addr=:8080
  DATA_SOURCE=mysql MYSQL_DSN="root:secret@tcp(localhost:3306)/hr" ./server

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/cache"
	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/events"
	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/generic/store"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/logging"
	"github.com/warp/leave-ledger/store/mysql"
	"github.com/warp/leave-ledger/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.SQLitePath, "SQLite database path")
	flag.Parse()
	cfg.Addr = *addr
	cfg.SQLitePath = *dbPath

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	policy, err := buildPolicy(cfg)
	if err != nil {
		return err
	}

	ds, err := openDataSource(cfg)
	if err != nil {
		return err
	}
	defer ds.close()

	opts := []leave.Option{leave.WithLogger(logger.Named("leave.ledger"))}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unreachable, summary cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			opts = append(opts, leave.WithCache(cache.NewRedisSummaryCache(rdb, cfg.SummaryCacheTTL, policy)))
			logger.Info("summary cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.SummaryCacheTTL))
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer writer.Close()
		opts = append(opts, leave.WithPublisher(events.NewKafkaPublisher(writer, "")))
		logger.Info("flag change publishing enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	ledger := leave.NewLedger(ds.tx, policy, opts...)

	if cfg.DataSource == config.DataSourceFixture {
		if cfg.IsProduction() {
			logger.Warn("fixture data source in production, data is lost on restart")
		}
		if err := api.LoadScenario(context.Background(), api.FixtureScenario, ledger, ds.members, cfg.FixtureYear); err != nil {
			return fmt.Errorf("seed fixture data: %w", err)
		}
		logger.Info("fixture data loaded", zap.Int("year", cfg.FixtureYear))
	}

	handlerOpts := []api.HandlerOption{api.WithHandlerLogger(logger.Named("api"))}
	if ds.members != nil {
		handlerOpts = append(handlerOpts, api.WithMembers(ds.members))
	}
	if ds.resetter != nil {
		handlerOpts = append(handlerOpts, api.WithResetter(ds.resetter))
	}
	if ds.pinger != nil {
		handlerOpts = append(handlerOpts, api.WithPinger(ds.pinger))
	}
	handler := api.NewHandler(ledger, handlerOpts...)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORSOrigins,
		Logger:         logger.Named("http"),
	})

	scheduler := api.NewReclassificationScheduler(ledger, cfg.ReclassifyInterval)
	scheduler.Logger = logger.Named("scheduler")
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Addr),
			zap.String("data_source", cfg.DataSource),
			zap.String("mode", string(policy.Mode)),
			zap.Int("monthly_quota", policy.MonthlyQuota),
			zap.Int("yearly_quota", policy.YearlyQuota),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// buildPolicy prefers POLICY_FILE and falls back to the quota variables.
func buildPolicy(cfg config.Config) (leave.Policy, error) {
	if cfg.PolicyFile != "" {
		return factory.LoadPolicyFile(cfg.PolicyFile)
	}
	mode, err := leave.ParseMode(cfg.LeaveMode)
	if err != nil {
		return leave.Policy{}, fmt.Errorf("LEAVE_MODE: %w", err)
	}
	policy := leave.DefaultPolicy()
	policy.Mode = mode
	policy.MonthlyQuota = cfg.MonthlyQuota
	policy.YearlyQuota = cfg.YearlyQuota
	return policy, nil
}

// dataSource bundles what one DATA_SOURCE provides.
type dataSource struct {
	tx       generic.TxStore
	members  generic.MemberStore
	resetter api.Resetter
	pinger   api.Pinger
	close    func() error
}

func openDataSource(cfg config.Config) (dataSource, error) {
	switch cfg.DataSource {
	case config.DataSourceSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return dataSource{}, fmt.Errorf("failed to initialize sqlite: %w", err)
		}
		return dataSource{tx: s, members: s, resetter: s, pinger: s, close: s.Close}, nil

	case config.DataSourceMySQL:
		s, err := mysql.Open(cfg.MySQLDSN)
		if err != nil {
			return dataSource{}, fmt.Errorf("failed to initialize mysql: %w", err)
		}
		return dataSource{tx: s, members: s, pinger: s, close: s.Close}, nil

	case config.DataSourceFixture:
		s := store.NewTxMemory()
		return dataSource{tx: s, members: s, resetter: s, close: func() error { return nil }}, nil

	default:
		return dataSource{}, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}
}
