// Library worker entry point: consumes profile-build requests from Kafka
// and builds reference profiles, serialized per disease with a Redis lock.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	applib "github.com/diagnovera/diagnovera/internal/application/library"
	"github.com/diagnovera/diagnovera/internal/bootstrap"
	"github.com/diagnovera/diagnovera/internal/config"
	"github.com/diagnovera/diagnovera/internal/infrastructure/database/postgres"
	"github.com/diagnovera/diagnovera/internal/infrastructure/database/postgres/repositories"
	"github.com/diagnovera/diagnovera/internal/infrastructure/database/redis"
	"github.com/diagnovera/diagnovera/internal/infrastructure/messaging/kafka"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/errors"
)

// buildLockTTL bounds how long one worker may hold a disease's build lock.
const buildLockTTL = 2 * time.Minute

func main() {
	configPath := flag.String("config", "", "config file path (default: environment variables)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
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
	logger = logger.Named("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.NewConnection(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
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

	_, mapper := bootstrap.NewMapper(cfg.Engine, logger)

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

	handler := withBuildLock(rds, kafka.BuildRequestHandler(librarySvc, logger), logger)
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          kafka.TopicLibraryBuildRequested,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		MaxRetries:     cfg.Worker.MaxRetries,
		RetryBackoff:   cfg.Worker.RetryBackoff,
		CommitInterval: cfg.Worker.CommitInterval,
	}, handler, logger)
	if err != nil {
		return err
	}
	defer func() { _ = consumer.Close() }()

	logger.Info("worker consuming build requests",
		logging.String("topic", kafka.TopicLibraryBuildRequested),
		logging.String("group_id", cfg.Kafka.GroupID),
	)
	if err := consumer.Run(ctx); err != nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}

// withBuildLock serializes builds per disease across worker replicas.  A
// contended lock is a retryable failure: the consumer backs off and tries
// again rather than building the same profile twice concurrently.
func withBuildLock(rds *redis.Client, next kafka.Handler, log logging.Logger) kafka.Handler {
	log = log.Named("build_lock")
	return func(ctx context.Context, env *kafka.EventEnvelope) error {
		var payload kafka.BuildRequestPayload
		if err := env.DecodePayload(&payload); err != nil || payload.DiseaseID == "" {
			// Malformed requests fall through; the inner handler drops them.
			return next(ctx, env)
		}

		lock := redis.NewLock(rds, "build:"+payload.DiseaseID, buildLockTTL)
		acquired, err := lock.TryAcquire(ctx)
		if err != nil {
			return err
		}
		if !acquired {
			return errors.New(errors.CodeConflict, "build already in progress for "+payload.DiseaseID)
		}
		defer func() {
			if err := lock.Release(ctx); err != nil {
				log.Warn("failed to release build lock",
					logging.String("disease_id", payload.DiseaseID),
					logging.Err(err),
				)
			}
		}()

		return next(ctx, env)
	}
}
