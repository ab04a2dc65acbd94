package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arbiterhq/gatehouse/internal/api"
	"github.com/arbiterhq/gatehouse/internal/audit"
	"github.com/arbiterhq/gatehouse/internal/auth"
	"github.com/arbiterhq/gatehouse/internal/catalog"
	"github.com/arbiterhq/gatehouse/internal/chread"
	"github.com/arbiterhq/gatehouse/internal/config"
	"github.com/arbiterhq/gatehouse/internal/constraints"
	"github.com/arbiterhq/gatehouse/internal/engine"
	"github.com/arbiterhq/gatehouse/internal/engine/groups"
	"github.com/arbiterhq/gatehouse/internal/governor"
	"github.com/arbiterhq/gatehouse/internal/ledger"
	"github.com/arbiterhq/gatehouse/internal/risk"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("GATEHOUSE_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("GATEHOUSE_PORT", "8080")
	policyFile := envOrDefault("GATEHOUSE_POLICY_FILE", "policy.yaml")
	auditTimeoutMs := envOrDefaultInt("GATEHOUSE_AUDIT_TIMEOUT_MS", 2000)
	auditDir := envOrDefault("GATEHOUSE_AUDIT_DIR", "audit")
	defaultPool := envOrDefault("GATEHOUSE_DEFAULT_POOL", "default")
	cacheTTL := envOrDefaultInt("GATEHOUSE_CACHE_TTL_S", 30)
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	kafkaTopic := envOrDefault("KAFKA_AUDIT_TOPIC", "gatehouse.audit")

	policy, err := config.Load(policyFile)
	if err != nil {
		logger.Fatal("failed to load policy", zap.String("file", policyFile), zap.Error(err))
	}

	logger.Info("starting gatehouse server",
		zap.String("http_port", httpPort),
		zap.String("policy_version", policy.Version),
		zap.Bool("killswitch_active", policy.KillswitchActive),
		zap.Float64("reserve_ratio", policy.ReserveRatio),
	)

	// Postgres pool (optional — ledger/catalog/auth fall back to policy-file
	// backed implementations when absent)
	var db *sql.DB
	if postgresDSN != "" {
		db, err = sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		logger.Info("postgres connected")
	} else {
		logger.Info("no POSTGRES_DSN set, using in-memory ledger and static catalog")
	}

	// Budget/population ledger
	var bookkeeper ledger.Ledger
	if db != nil {
		bookkeeper = ledger.NewPostgresLedger(ledger.PostgresLedgerConfig{
			DB:           db,
			ReserveRatio: policy.ReserveRatio,
			Logger:       logger,
		})
	} else {
		bookkeeper = ledger.NewMemoryLedger(policy.MemoryLedgerConfig())
	}

	// Template/profile catalog
	var cat catalog.Catalog
	if db != nil {
		cat = catalog.NewPostgresCatalog(catalog.PostgresCatalogConfig{
			DB:       db,
			CacheTTL: time.Duration(cacheTTL) * time.Second,
			Logger:   logger,
		})
	} else {
		cat, err = catalog.NewStaticCatalog(policy.StaticTemplates(), policy.Profiles())
		if err != nil {
			logger.Fatal("failed to build static catalog", zap.Error(err))
		}
	}

	// Rule groups, in evaluation order
	gates := []engine.Group{
		groups.NewAuthorization(policy.PrivilegedRole, policy.KillswitchActive),
		groups.NewTemplateIntegrity(policy.TemplateAllowlist),
		groups.NewConfigurationConstraints(),
		groups.NewBudgetPopulation(bookkeeper, defaultPool),
	}
	evaluator := engine.NewEvaluator(gates, groups.NewRiskReview(), logger)

	// Audit sinks — primary: ClickHouse, else append-only file, else log;
	// secondary: Kafka, else log.
	var primary audit.Sink
	if clickhouseDSN != "" {
		chSink, err := audit.NewClickHouseSink(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse sink connection failed, falling back to file sink", zap.Error(err))
		} else {
			primary = chSink
			logger.Info("clickhouse audit sink connected")
		}
	}
	if primary == nil {
		fileSink, err := audit.NewFileSink(auditDir, logger)
		if err != nil {
			logger.Warn("file sink unavailable, falling back to log sink", zap.Error(err))
			primary = audit.NewLogSink(logger)
		} else {
			primary = fileSink
			logger.Info("file audit sink opened", zap.String("dir", auditDir))
		}
	}
	defer primary.Close() //nolint:errcheck

	var secondary audit.Sink
	if kafkaBrokers != "" {
		kafkaSink, err := audit.NewKafkaSink(audit.KafkaSinkConfig{
			Brokers: splitCSV(kafkaBrokers),
			Topic:   kafkaTopic,
		})
		if err != nil {
			logger.Warn("kafka sink unavailable, falling back to log sink", zap.Error(err))
		} else {
			secondary = kafkaSink
			logger.Info("kafka audit sink connected", zap.String("topic", kafkaTopic))
		}
	}
	if secondary == nil {
		secondary = audit.NewLogSink(logger)
	}
	defer secondary.Close() //nolint:errcheck

	emitter := audit.NewEmitter(audit.EmitterConfig{
		Primary:     primary,
		Secondary:   secondary,
		SinkTimeout: time.Duration(auditTimeoutMs) * time.Millisecond,
		Logger:      logger,
	})

	svc := governor.NewService(governor.Config{
		Catalog:    cat,
		Evaluator:  evaluator,
		Classifier: risk.NewClassifier(),
		Resolver:   constraints.NewResolver(policy.ConstraintDefaultTable()),
		Emitter:    emitter,
		Ledger:     bookkeeper,
		Logger:     logger,
	})

	// Caller authentication
	var authenticator auth.Authenticator
	if db != nil {
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: time.Duration(cacheTTL) * time.Second,
			Logger:   logger,
		})
	} else {
		authenticator = auth.NewStaticAuthenticator()
		logger.Warn("no POSTGRES_DSN set, using static authenticator (development only)")
	}

	// ClickHouse reader (for audit query endpoints)
	var chReader *chread.Reader
	if clickhouseDSN != "" {
		chReader, err = chread.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = chReader.Close() }()
			logger.Info("clickhouse reader connected")
		}
	}

	deps := &api.Dependencies{
		Governor: svc,
		Auth:     authenticator,
		Reader:   chReader,
		Logger:   logger,
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("gatehouse server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
