package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"msgmon/internal/config"
	"msgmon/internal/history/sqlstore"
	"msgmon/internal/logger"
	"msgmon/pkg/retry"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// connect retries fn with the connect_retry policy.
func (dc *DatabaseConnector) connect(ctx context.Context, name string, fn func() error) error {
	policy := retry.FromConfig(dc.Config.Database.ConnectRetry)
	return retry.Do(ctx, policy, fn, func(attempt int, err error, next time.Duration) {
		dc.Logger.WarnwCtx(ctx, "Connection attempt failed",
			"backend", name,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	cfg := dc.Config.Database.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := dc.connect(ctx, "redis", func() error { return rdb.Ping(ctx).Err() }); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.InfowCtx(ctx, "Redis connected successfully", "addr", rdb.Options().Addr)
	return rdb, nil
}

func (dc *DatabaseConnector) PostgresDSN() string {
	cfg := dc.Config.Database.Postgres
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)
}

func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", dc.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := dc.connect(ctx, "postgres", func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dc.Logger.InfowCtx(ctx, "PostgreSQL connected successfully", "host", dc.Config.Database.Postgres.Host)
	return db, nil
}

// InitSQLite opens the database file, creating its directory and the
// history schema when missing.
func (dc *DatabaseConnector) InitSQLite(ctx context.Context) (*sqlx.DB, error) {
	path := dc.Config.Database.SQLite.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, sqlstore.SQLite.DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Concurrent writers fail with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := sqlstore.EnsureSQLiteSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	dc.Logger.InfowCtx(ctx, "SQLite opened successfully", "path", path)
	return db, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	mongoOpts := options.Client().ApplyURI(dc.Config.Database.MongoDB.URI)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := dc.connect(ctx, "mongodb", func() error { return mongoClient.Ping(ctx, nil) }); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.InfowCtx(ctx, "MongoDB connected successfully")
	return mongoClient, nil
}
