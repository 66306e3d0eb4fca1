// API server entry point: HTTP interface over the diagnosis and library
// services, backed by Postgres, Redis, and Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appdiag "github.com/diagnovera/diagnovera/internal/application/diagnosis"
	applib "github.com/diagnovera/diagnovera/internal/application/library"
	"github.com/diagnovera/diagnovera/internal/bootstrap"
	"github.com/diagnovera/diagnovera/internal/config"
	"github.com/diagnovera/diagnovera/internal/infrastructure/database/postgres"
	"github.com/diagnovera/diagnovera/internal/infrastructure/database/postgres/repositories"
	"github.com/diagnovera/diagnovera/internal/infrastructure/database/redis"
	"github.com/diagnovera/diagnovera/internal/infrastructure/messaging/kafka"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/diagnovera/diagnovera/internal/interfaces/http"
	"github.com/diagnovera/diagnovera/internal/interfaces/http/handlers"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: environment variables)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger = logger.Named("apiserver")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	if cfg.Database.MigrationPath != "" {
		if err := postgres.RunMigrations(pgCfg, cfg.Database.MigrationPath); err != nil {
			return err
		}
	}
	pg, err := postgres.NewConnection(ctx, pgCfg, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	rds, err := redis.NewClient(ctx, redis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rds.Close() }()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.ProducerRetries,
		BatchTimeout: cfg.Kafka.BatchTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = producer.Close() }()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "diagnovera",
		Subsystem:            "apiserver",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	_, mapper := bootstrap.NewMapper(cfg.Engine, logger)
	engine, err := bootstrap.NewEngine(cfg.Engine, logger)
	if err != nil {
		return err
	}

	librarySvc, err := applib.NewService(applib.Deps{
		Repo:      repositories.NewProfileRepo(pg.Pool(), logger),
		Cache:     redis.NewLibraryCache(rds, cfg.Redis.KeyPrefix, cfg.Redis.DefaultTTL, logger),
		Mapper:    mapper,
		Publisher: producer,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	diagnosisSvc, err := appdiag.NewService(appdiag.Deps{
		Mapper:    mapper,
		Engine:    engine,
		Profiles:  librarySvc,
		Results:   repositories.NewDiagnosisRepo(pg.Pool(), logger),
		Publisher: producer,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		DiagnosisHandler: handlers.NewDiagnosisHandler(diagnosisSvc),
		LibraryHandler:   handlers.NewLibraryHandler(librarySvc),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"postgres": pg.HealthCheck,
			"redis":    rds.HealthCheck,
		}),
		Server:           cfg.Server,
		Logger:           logger,
		Metrics:          metrics,
		MetricsCollector: collector,
	})
	server := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", logging.Err(err))
		return err
	}
	logger.Info("apiserver stopped")
	return nil
}
