package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Ramsey-B/docket/config"
	"github.com/Ramsey-B/docket/internal/repositories/bulletin"
	"github.com/Ramsey-B/docket/internal/repositories/dispatch"
	"github.com/Ramsey-B/docket/internal/repositories/offender"
	"github.com/Ramsey-B/docket/internal/repositories/registry"
	"github.com/Ramsey-B/docket/internal/repositories/roster"
	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/events"
	"github.com/Ramsey-B/docket/pkg/ingestion"
	"github.com/Ramsey-B/docket/pkg/kafka"
	"github.com/Ramsey-B/docket/pkg/logging"
	"github.com/Ramsey-B/docket/pkg/redis"
	"github.com/Ramsey-B/docket/pkg/resolver"
	"github.com/Ramsey-B/docket/pkg/startup"
	"github.com/Ramsey-B/docket/pkg/tracing"
	"github.com/Ramsey-B/docket/pkg/tracing/exporters"
)

// app holds what every command shares: config, logger, tracing and the database.
type app struct {
	cfg    config.Config
	logger ectologger.Logger
	zap    *zap.Logger

	db    database.DB
	sqlDB *sqlx.DB

	producer *kafka.Producer

	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, zapLogger, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, err
	}

	exporter, err := exporters.New(ctx, cfg.TracingEnabled, exporters.OTLPConfig{
		Endpoint: cfg.TracingEndpoint,
		Protocol: cfg.TracingProtocol,
		Insecure: cfg.TracingInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	return &app{
		cfg:             cfg,
		logger:          logger,
		zap:             zapLogger,
		shutdownTracing: tracing.Setup(cfg.AppName, cfg.Version, exporter),
	}, nil
}

func (a *app) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close Kafka producer")
		}
	}
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
	if err := a.shutdownTracing(ctx); err != nil {
		a.logger.WithError(err).Warn("Failed to flush traces")
	}
	_ = a.zap.Sync()
}

// databaseDependency connects the pool. Migrations are a separate dependency on top of it.
func (a *app) databaseDependency() *startup.Dependency {
	return &startup.Dependency{
		Name: "database",
		OnStart: func(ctx context.Context) error {
			db, sqlDB, err := database.Connect(ctx, a.cfg.DatabaseDSN(), database.PoolConfig{
				MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
			}, a.logger, database.WithCommandTimeout(a.cfg.DatabaseCommandTimeout))
			if err != nil {
				return err
			}
			a.db, a.sqlDB = db, sqlDB
			a.logger.Infof("Connected to database %s at %s:%s", a.cfg.DatabaseName, a.cfg.DatabaseHost, a.cfg.DatabasePort)
			return nil
		},
	}
}

func (a *app) migrationService() *database.MigrationService {
	return database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})
}

func (a *app) migrationsDependency() *startup.Dependency {
	return &startup.Dependency{
		Name:     "migrations",
		Requires: []string{"database"},
		OnStart: func(context.Context) error {
			return a.migrationService().Migrate(a.sqlDB.DB, a.cfg.DatabaseName)
		},
	}
}

func (a *app) connectRedis(ctx context.Context) (*redis.Client, error) {
	return redis.NewClient(ctx, redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
}

// producerDependency starts the records-admitted producer when enabled.
func (a *app) producerDependency() *startup.Dependency {
	return &startup.Dependency{
		Name: "kafka-producer",
		OnStart: func(context.Context) error {
			if !a.cfg.KafkaProducerEnabled {
				a.logger.Info("Kafka producer disabled, admitted records will not be announced")
				return nil
			}

			producerCfg := kafka.DefaultProducerConfig()
			producerCfg.Brokers = a.cfg.KafkaBrokers
			producerCfg.Topic = a.cfg.KafkaOutputTopic
			producerCfg.BatchSize = a.cfg.KafkaBatchSize
			producerCfg.BatchTimeout = time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond
			producerCfg.RequiredAcks = a.cfg.KafkaRequiredAcks
			producerCfg.Compression = a.cfg.KafkaCompression

			producer, err := kafka.NewProducer(producerCfg, a.logger)
			if err != nil {
				return err
			}
			a.producer = producer
			return nil
		},
	}
}

// newService wires repositories and the resolver into the ingestion coordinator.
func (a *app) newService() (*ingestion.Service, error) {
	fields, err := resolver.ParseFieldSet(a.cfg.DedupMatchFields)
	if err != nil {
		return nil, fmt.Errorf("invalid DEDUP_MATCH_FIELDS: %w", err)
	}

	offenders := offender.NewRepository(a.db, a.logger)
	stores := ingestion.Stores{
		Roster:            roster.NewRepository(a.db, a.logger),
		Dispatch:          dispatch.NewRepository(a.db, a.logger),
		Registry:          registry.NewRepository(a.db, a.logger),
		Bulletin:          bulletin.NewRepository(a.db, a.logger),
		Offender:          offenders,
		OffenderSummaries: offenders.SummaryLookup(),
		OffenderDetails:   offenders.DetailLookup(),
	}

	var publisher events.Publisher
	if a.producer != nil {
		publisher = a.producer
	}

	res := resolver.NewResolver(fields)
	a.logger.WithField("fields", []string(res.Fields())).Info("Bulletin logical duplicate matching configured")

	return ingestion.NewService(a.db, stores, res, events.NewEmitter(publisher, a.logger), a.logger), nil
}
