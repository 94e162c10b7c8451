package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	History        HistoryConfig        `mapstructure:"history"`
	Worker         WorkerConfig         `mapstructure:"worker"`
	Transports     []TransportConfig    `mapstructure:"transports"`
	Schedules      []ScheduleConfig     `mapstructure:"schedules"`
	Messages       []MessageConfig      `mapstructure:"messages"`
	Alerts         []AlertConfig        `mapstructure:"alerts"`
	Dashboard      DashboardConfig      `mapstructure:"dashboard"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	SQLite        SQLiteConfig   `mapstructure:"sqlite"`
	Redis         RedisConfig    `mapstructure:"redis"`
	MongoDB       MongoDBConfig  `mapstructure:"mongodb"`
	RunMigrations bool           `mapstructure:"run_migrations"`
	ConnectRetry  RetryConfig    `mapstructure:"connect_retry"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string    `mapstructure:"brokers"`
	GroupID string      `mapstructure:"group_id"`
	Retry   RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HistoryConfig struct {
	// Storage selects the backend: memory, postgres, sqlite or mongodb.
	Storage    string        `mapstructure:"storage"`
	ProjectDir string        `mapstructure:"project_dir"`
	Publish    PublishConfig `mapstructure:"publish"`
}

type PublishConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic"`
}

type WorkerConfig struct {
	Cache            string `mapstructure:"cache"`
	TTLSeconds       int    `mapstructure:"ttl_seconds"`
	HeartbeatSeconds int    `mapstructure:"heartbeat_seconds"`
}

type TransportConfig struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
	// Topic is the kafka topic, redis list key or redis stream key.
	Topic  string   `mapstructure:"topic"`
	Group  string   `mapstructure:"group"`
	Queues []string `mapstructure:"queues"`
}

type ScheduleConfig struct {
	Name  string       `mapstructure:"name"`
	Tasks []TaskConfig `mapstructure:"tasks"`
}

type TaskConfig struct {
	ID          string `mapstructure:"id"`
	MessageType string `mapstructure:"message_type"`
	Trigger     string `mapstructure:"trigger"`
	Description string `mapstructure:"description"`
}

type MessageConfig struct {
	Type              string   `mapstructure:"type"`
	Description       string   `mapstructure:"description"`
	Tags              []string `mapstructure:"tags"`
	DisableMonitoring bool     `mapstructure:"disable_monitoring"`
	OnlyWhenNoHandler bool     `mapstructure:"only_when_no_handler"`
}

type AlertConfig struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
	Severity   string `mapstructure:"severity"`
	Period     string `mapstructure:"period"`
}

type DashboardConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

func (c WorkerConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c WorkerConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
