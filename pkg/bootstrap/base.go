// Package bootstrap builds the monitoring stack described by the
// configuration: history storage, worker cache, transports, schedules and
// alert rules.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"msgmon/internal/alerting"
	"msgmon/internal/broker"
	"msgmon/internal/config"
	"msgmon/internal/constants"
	"msgmon/internal/history"
	"msgmon/internal/history/memstore"
	"msgmon/internal/history/mongostore"
	"msgmon/internal/history/sqlstore"
	"msgmon/internal/logger"
	"msgmon/internal/messenger"
	"msgmon/internal/schedule"
	"msgmon/internal/transport"
	"msgmon/internal/worker"
	"msgmon/pkg/health"
	"msgmon/pkg/migrations"
)

type Base struct {
	Config *config.Config
	Logger logger.Logger

	Storage     history.Storage
	Registry    *messenger.Registry
	WorkerCache worker.Cache
	Workers     *worker.Monitor
	Transports  *transport.Monitor
	Schedules   *schedule.Monitor
	Alerts      *alerting.Evaluator
	Publisher   broker.Producer
	Health      *health.CheckerRegistry

	connector *DatabaseConnector
	redis     *redis.Client
	sqlDB     *sql.DB
	mongo     *mongo.Client
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config:    cfg,
		Logger:    log,
		Health:    health.NewCheckerRegistry(),
		connector: NewDatabaseConnector(cfg, log),
	}
}

// Init builds every component. Connections opened before a failure are
// released by Shutdown.
func (b *Base) Init(ctx context.Context) error {
	b.Registry = RegistryFromConfig(b.Config.Messages)

	if err := b.InitStorage(ctx); err != nil {
		return err
	}
	if err := b.InitWorkers(ctx); err != nil {
		return err
	}
	if err := b.InitTransports(ctx); err != nil {
		return err
	}
	b.Schedules = schedule.NewMonitor(b.Config.Schedules, b.Transports, b.Storage)

	alerts, err := alerting.NewEvaluator(b.Config.Alerts)
	if err != nil {
		return fmt.Errorf("failed to compile alert rules: %w", err)
	}
	b.Alerts = alerts
	return nil
}

// InitStorage opens the configured history backend and applies the circuit
// breaker and event publishing decorators.
func (b *Base) InitStorage(ctx context.Context) error {
	storage, err := b.openStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize %s history storage: %w", b.Config.History.Storage, err)
	}

	if b.Config.CircuitBreaker.Enabled {
		storage = history.NewCircuitBreakerStorage(storage, b.Config.CircuitBreaker)
	}

	publisher, err := broker.NewEventPublisher(b.Config, b.Logger)
	if err != nil {
		return err
	}
	if publisher != nil {
		b.Publisher = publisher
		storage = history.NewPublishingStorage(storage, publisher, b.Logger)
		b.Health.RegisterOptional(health.NewKafkaChecker(b.Config.Broker.Kafka.Brokers))
	}

	b.Storage = storage
	return nil
}

func (b *Base) openStorage(ctx context.Context) (history.Storage, error) {
	switch b.Config.History.Storage {
	case constants.StorageMemory, "":
		return memstore.New(), nil

	case constants.StoragePostgres:
		db, err := b.connector.InitPostgreSQL(ctx)
		if err != nil {
			return nil, err
		}
		b.sqlDB = db
		if b.Config.Database.RunMigrations {
			version, err := migrations.RunPostgres(db, migrations.Up)
			if err != nil {
				return nil, err
			}
			b.Logger.InfowCtx(ctx, "Migrations applied", "version", version)
		}
		b.Health.Register(health.NewSQLChecker("postgres", db))
		return sqlstore.NewFromDB(db, sqlstore.Postgres), nil

	case constants.StorageSQLite:
		db, err := b.connector.InitSQLite(ctx)
		if err != nil {
			return nil, err
		}
		b.sqlDB = db.DB
		b.Health.Register(health.NewSQLChecker("sqlite", db.DB))
		return sqlstore.New(db, sqlstore.SQLite), nil

	case constants.StorageMongoDB:
		client, err := b.connector.InitMongoDB(ctx)
		if err != nil {
			return nil, err
		}
		b.mongo = client
		db := client.Database(b.MongoDatabase())
		if b.Config.Database.RunMigrations {
			if err := migrations.EnsureMongoIndexes(ctx, db, constants.DefaultHistoryColl); err != nil {
				return nil, err
			}
		}
		b.Health.Register(health.NewMongoDBChecker(client))
		return mongostore.New(db, constants.DefaultHistoryColl), nil
	}
	return nil, fmt.Errorf("unknown history storage %q", b.Config.History.Storage)
}

func (b *Base) MongoDatabase() string {
	if name := b.Config.Database.MongoDB.Database; name != "" {
		return name
	}
	return constants.DefaultMongoDBName
}

// SQLDB is the open postgres or sqlite pool, nil for other backends.
func (b *Base) SQLDB() *sql.DB {
	return b.sqlDB
}

// MongoClient is nil unless the mongodb backend is configured.
func (b *Base) MongoClient() *mongo.Client {
	return b.mongo
}

func (b *Base) InitWorkers(ctx context.Context) error {
	switch b.Config.Worker.Cache {
	case constants.WorkerCacheMemory, "":
		b.WorkerCache = worker.NewMemoryCache(b.Config.Worker.TTL())
	case constants.WorkerCacheRedis:
		client, err := b.Redis(ctx)
		if err != nil {
			return err
		}
		b.WorkerCache = worker.NewRedisCache(client, b.Config.Worker.TTL())
	default:
		return fmt.Errorf("unknown worker cache %q", b.Config.Worker.Cache)
	}
	b.Workers = worker.NewMonitor(b.WorkerCache)
	return nil
}

func (b *Base) InitTransports(ctx context.Context) error {
	deps := transport.Dependencies{
		KafkaBrokers: b.Config.Broker.Kafka.Brokers,
		KafkaGroup:   b.Config.Broker.Kafka.GroupID,
		Registry:     b.Registry,
	}
	if needsRedis(b.Config.Transports) {
		client, err := b.Redis(ctx)
		if err != nil {
			return err
		}
		deps.Redis = client
	}

	named, err := transport.FromConfig(b.Config.Transports, b.Config.Schedules, deps)
	if err != nil {
		return fmt.Errorf("failed to build transports: %w", err)
	}
	b.Transports = transport.NewMonitor(b.Workers, named...)
	return nil
}

// Redis connects once and shares the client between the worker cache and
// redis transports.
func (b *Base) Redis(ctx context.Context) (*redis.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	client, err := b.connector.InitRedis(ctx)
	if err != nil {
		return nil, err
	}
	b.redis = client
	b.Health.RegisterOptional(health.NewRedisChecker(client))
	return client, nil
}

// Listener records history for a worker built on this stack.
func (b *Base) Listener(opts ...history.ListenerOption) *history.Listener {
	normalizer := history.NewResultNormalizer(b.Config.History.ProjectDir)
	opts = append([]history.ListenerOption{
		history.WithRegistry(b.Registry),
		history.WithLogger(b.Logger),
	}, opts...)
	return history.NewListener(b.Storage, normalizer, opts...)
}

func (b *Base) Shutdown(ctx context.Context) error {
	var errs []error

	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher close error: %w", err))
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}
	if b.sqlDB != nil {
		if err := b.sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close error: %w", err))
		}
	}
	if b.mongo != nil {
		if err := b.mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func RegistryFromConfig(messages []config.MessageConfig) *messenger.Registry {
	registry := messenger.NewRegistry()
	for _, m := range messages {
		registry.Register(m.Type, messenger.Declaration{
			Description:       m.Description,
			Tags:              m.Tags,
			DisableMonitoring: m.DisableMonitoring,
			OnlyWhenNoHandler: m.OnlyWhenNoHandler,
		})
	}
	return registry
}

func needsRedis(transports []config.TransportConfig) bool {
	for _, t := range transports {
		if t.Type == constants.TransportRedisList || t.Type == constants.TransportRedisStream {
			return true
		}
	}
	return false
}
