package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaDialTimeout  = 5 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
	HealthTimeout   = 5 * time.Second
)

const (
	DefaultMongoDBName   = "msgmon"
	DefaultHistoryTopic  = "msgmon.history"
	DefaultHistoryTable  = "processed_messages"
	DefaultHistoryColl   = "processed_messages"
	DefaultSQLitePath    = "msgmon.db"
	DefaultServiceName   = "msgmon"
	DefaultConsumerGroup = "msgmon"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMongoDB  = "mongodb"
)

const (
	WorkerCacheMemory = "memory"
	WorkerCacheRedis  = "redis"
)

const (
	TransportKafka       = "kafka"
	TransportRedisList   = "redis_list"
	TransportRedisStream = "redis_stream"
	TransportSync        = "sync"
	TransportScheduler   = "scheduler"
	TransportMemory      = "memory"
)

const (
	// ExpiredWorkerTTL bounds how long a worker entry survives without a heartbeat.
	ExpiredWorkerTTL         = 3600 * time.Second
	DefaultWorkerHeartbeat   = 15 * time.Second
	CacheKeyPrefixWorker     = "msgmon:worker:"
	CacheKeyWorkerIDs        = "msgmon:worker_ids"
	SchedulerTransportPrefix = "scheduler_"
)

const (
	DefaultLimit       = 10
	MaxLimit           = 1000
	DefaultKeep        = 10
	DefaultPageSize    = 100
	StatusRefreshEvery = time.Second
)

const (
	// StorageTimeUnit is the resolution of persisted timestamps.
	StorageTimeUnit = time.Millisecond
)
