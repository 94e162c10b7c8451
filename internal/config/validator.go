package config

import (
	"errors"
	"fmt"
	"strings"

	"msgmon/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks the configuration without touching any backend.
// Every failing section contributes one error to the joined result.
func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errs = append(errs, err)
	}

	if err := validateHistory(cfg.History, cfg.Database, cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if err := validateWorker(cfg.Worker, cfg.Database); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateTransports(cfg.Transports, cfg.Broker)...)
	errs = append(errs, validateSchedules(cfg.Schedules)...)
	errs = append(errs, validateMessages(cfg.Messages)...)
	errs = append(errs, validateAlerts(cfg.Alerts)...)

	return errors.Join(errs...)
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	if cfg.ConnectRetry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "database.connect_retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateHistory(cfg HistoryConfig, db DatabaseConfig, broker BrokerConfig) error {
	switch cfg.Storage {
	case constants.StorageMemory:
	case constants.StoragePostgres:
		if db.Postgres.Host == "" {
			return &ValidationError{
				Field:   "history.storage",
				Message: "postgres storage requires database.postgres settings",
			}
		}
	case constants.StorageSQLite:
		if db.SQLite.Path == "" {
			return &ValidationError{
				Field:   "database.sqlite.path",
				Message: "sqlite storage requires a database path",
			}
		}
	case constants.StorageMongoDB:
		if db.MongoDB.URI == "" {
			return &ValidationError{
				Field:   "history.storage",
				Message: "mongodb storage requires database.mongodb.uri",
			}
		}
	default:
		return &ValidationError{
			Field:   "history.storage",
			Message: fmt.Sprintf("unknown storage: %q (supported: memory, postgres, sqlite, mongodb)", cfg.Storage),
		}
	}

	if cfg.Publish.Enabled {
		if len(broker.Kafka.Brokers) == 0 {
			return &ValidationError{
				Field:   "history.publish.enabled",
				Message: "publishing history events requires broker.kafka.brokers",
			}
		}
		if cfg.Publish.Topic == "" {
			return &ValidationError{
				Field:   "history.publish.topic",
				Message: "topic is required when publishing is enabled",
			}
		}
	}

	return nil
}

func validateWorker(cfg WorkerConfig, db DatabaseConfig) error {
	switch cfg.Cache {
	case constants.WorkerCacheMemory:
	case constants.WorkerCacheRedis:
		if db.Redis.Host == "" {
			return &ValidationError{
				Field:   "worker.cache",
				Message: "redis worker cache requires database.redis settings",
			}
		}
	default:
		return &ValidationError{
			Field:   "worker.cache",
			Message: fmt.Sprintf("unknown worker cache: %q (supported: memory, redis)", cfg.Cache),
		}
	}

	if cfg.TTLSeconds <= 0 {
		return &ValidationError{
			Field:   "worker.ttl_seconds",
			Message: "TTL must be positive",
		}
	}

	if cfg.HeartbeatSeconds <= 0 || cfg.HeartbeatSeconds >= cfg.TTLSeconds {
		return &ValidationError{
			Field:   "worker.heartbeat_seconds",
			Message: "heartbeat must be positive and shorter than the TTL",
		}
	}

	return nil
}

func validateTransports(transports []TransportConfig, broker BrokerConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(transports))

	for i, t := range transports {
		field := fmt.Sprintf("transports[%d]", i)

		if t.Name == "" {
			errs = append(errs, &ValidationError{Field: field + ".name", Message: "transport name is required"})
			continue
		}
		if seen[t.Name] {
			errs = append(errs, &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate transport %q", t.Name)})
		}
		seen[t.Name] = true

		switch t.Type {
		case constants.TransportKafka:
			if len(broker.Kafka.Brokers) == 0 {
				errs = append(errs, &ValidationError{Field: field + ".type", Message: "kafka transports require broker.kafka.brokers"})
			}
			if t.Topic == "" {
				errs = append(errs, &ValidationError{Field: field + ".topic", Message: "kafka transports require a topic"})
			}
		case constants.TransportRedisList, constants.TransportRedisStream:
			if t.Topic == "" {
				errs = append(errs, &ValidationError{Field: field + ".topic", Message: "redis transports require a key"})
			}
		case constants.TransportSync, constants.TransportScheduler, constants.TransportMemory:
		default:
			errs = append(errs, &ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unknown transport type: %q", t.Type),
			})
		}
	}

	return errs
}

func validateSchedules(schedules []ScheduleConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(schedules))

	for i, s := range schedules {
		field := fmt.Sprintf("schedules[%d]", i)

		if s.Name == "" {
			errs = append(errs, &ValidationError{Field: field + ".name", Message: "schedule name is required"})
			continue
		}
		if strings.Contains(s.Name, ":") {
			errs = append(errs, &ValidationError{Field: field + ".name", Message: "schedule name cannot contain ':'"})
		}
		if seen[s.Name] {
			errs = append(errs, &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate schedule %q", s.Name)})
		}
		seen[s.Name] = true

		tasks := make(map[string]bool, len(s.Tasks))
		for j, task := range s.Tasks {
			taskField := fmt.Sprintf("%s.tasks[%d]", field, j)
			if task.ID == "" {
				errs = append(errs, &ValidationError{Field: taskField + ".id", Message: "task id is required"})
				continue
			}
			if tasks[task.ID] {
				errs = append(errs, &ValidationError{Field: taskField + ".id", Message: fmt.Sprintf("duplicate task %q", task.ID)})
			}
			tasks[task.ID] = true
		}
	}

	return errs
}

func validateMessages(messages []MessageConfig) []error {
	var errs []error

	for i, m := range messages {
		if m.Type == "" {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("messages[%d].type", i),
				Message: "message type is required",
			})
		}
		if m.OnlyWhenNoHandler && !m.DisableMonitoring {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("messages[%d].only_when_no_handler", i),
				Message: "only_when_no_handler requires disable_monitoring",
			})
		}
	}

	return errs
}

func validateAlerts(alerts []AlertConfig) []error {
	var errs []error

	for i, a := range alerts {
		if a.Name == "" {
			errs = append(errs, &ValidationError{Field: fmt.Sprintf("alerts[%d].name", i), Message: "alert name is required"})
		}
		if a.Expression == "" {
			errs = append(errs, &ValidationError{Field: fmt.Sprintf("alerts[%d].expression", i), Message: "alert expression is required"})
		}
	}

	return errs
}
