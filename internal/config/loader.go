package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"msgmon/internal/constants"
)

// LoadConfig reads configFile (YAML) with environment overrides. A .env file
// next to the working directory is loaded first when present. An empty
// configFile yields the defaults plus the environment.
func LoadConfig(configFile string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	viper.Reset()

	viper.SetConfigType("yaml")
	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 10)
	viper.SetDefault("server.write_timeout_seconds", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("history.storage", constants.StorageMemory)
	viper.SetDefault("history.publish.topic", constants.DefaultHistoryTopic)

	viper.SetDefault("database.sqlite.path", constants.DefaultSQLitePath)
	viper.SetDefault("database.postgres.sslmode", "disable")
	viper.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)
	viper.SetDefault("database.connect_retry.max_attempts", 5)
	viper.SetDefault("database.connect_retry.initial_interval", "500ms")
	viper.SetDefault("database.connect_retry.max_interval", "5s")
	viper.SetDefault("database.connect_retry.multiplier", 2.0)

	viper.SetDefault("broker.kafka.group_id", constants.DefaultConsumerGroup)

	viper.SetDefault("worker.cache", constants.WorkerCacheMemory)
	viper.SetDefault("worker.ttl_seconds", int(constants.ExpiredWorkerTTL.Seconds()))
	viper.SetDefault("worker.heartbeat_seconds", int(constants.DefaultWorkerHeartbeat.Seconds()))

	viper.SetDefault("dashboard.rate_limit.rps", 10.0)
	viper.SetDefault("dashboard.rate_limit.burst", 20)
	viper.SetDefault("dashboard.rate_limit.cleanup_interval", 300)
	viper.SetDefault("dashboard.rate_limit.max_age", 600)

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 5)

	viper.SetDefault("tracing.service_name", constants.DefaultServiceName)
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.sqlite.path", "DATABASE_SQLITE_PATH")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("history.storage", "HISTORY_STORAGE")
	viper.BindEnv("history.project_dir", "HISTORY_PROJECT_DIR")
	viper.BindEnv("history.publish.enabled", "HISTORY_PUBLISH_ENABLED")
	viper.BindEnv("history.publish.topic", "HISTORY_PUBLISH_TOPIC")

	viper.BindEnv("worker.cache", "WORKER_CACHE")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if projectDir := viper.GetString("HISTORY_PROJECT_DIR"); projectDir != "" {
		cfg.History.ProjectDir = projectDir
	}

	if cfg.History.ProjectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
		cfg.History.ProjectDir = wd
	}

	return nil
}
