package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HistoryMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgmon_history_messages_total",
			Help: "Total number of processed messages recorded to history (count)",
		},
		[]string{"status", "transport"},
	)

	HistorySkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgmon_history_skipped_total",
			Help: "Total number of message attempts not recorded to history (count)",
		},
		[]string{"reason"},
	)

	HistorySaveErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgmon_history_save_errors_total",
			Help: "Total number of failed history saves (count)",
		},
		[]string{"transport"},
	)

	HistoryWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msgmon_history_wait_duration_ms",
			Help:    "Time messages spent in queue before being received in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000, 60000},
		},
		[]string{"transport"},
	)

	HistoryHandlingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msgmon_history_handling_duration_ms",
			Help:    "Time spent handling messages in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"transport", "status"},
	)

	StorageQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgmon_storage_queries_total",
			Help: "Total number of history storage queries (count)",
		},
		[]string{"storage", "operation", "status"},
	)

	StorageQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msgmon_storage_query_duration_ms",
			Help:    "Duration of history storage queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"storage", "operation"},
	)

	StoragePurgedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgmon_storage_purged_total",
			Help: "Total number of history rows removed by purges (count)",
		},
		[]string{"storage"},
	)

	WorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "msgmon_workers_active",
			Help: "Number of workers currently registered in the worker cache (count)",
		},
	)

	WorkerHeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgmon_worker_heartbeats_total",
			Help: "Total number of worker heartbeats written (count)",
		},
		[]string{"status"},
	)

	TransportQueuedMessages = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "msgmon_transport_queued_messages",
			Help: "Messages waiting in a transport (count)",
		},
		[]string{"transport"},
	)

	AlertTriggered = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "msgmon_alert_triggered",
			Help: "Whether an alert rule currently fires (0 or 1)",
		},
		[]string{"rule", "severity"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgmon_retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"operation"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"group", "topic", "partition"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)
)

func RegisterHistoryMetrics() {
	prometheus.MustRegister(HistoryMessagesTotal)
	prometheus.MustRegister(HistorySkippedTotal)
	prometheus.MustRegister(HistorySaveErrorsTotal)
	prometheus.MustRegister(HistoryWaitDuration)
	prometheus.MustRegister(HistoryHandlingDuration)
}

func RegisterStorageMetrics() {
	prometheus.MustRegister(StorageQueriesTotal)
	prometheus.MustRegister(StorageQueryDuration)
	prometheus.MustRegister(StoragePurgedTotal)
}

func RegisterMonitorMetrics() {
	prometheus.MustRegister(WorkersActive)
	prometheus.MustRegister(WorkerHeartbeatsTotal)
	prometheus.MustRegister(TransportQueuedMessages)
	prometheus.MustRegister(AlertTriggered)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterDashboardMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(RetryAttemptsTotal)
}

var registerAllOnce sync.Once

// RegisterAll registers every collector with the default registry once per process.
func RegisterAll() {
	registerAllOnce.Do(func() {
		RegisterHistoryMetrics()
		RegisterStorageMetrics()
		RegisterMonitorMetrics()
		RegisterBrokerMetrics()
		RegisterCircuitBreakerMetrics()
		RegisterDashboardMetrics()
	})
}

func ObserveHistoryMessage(transport, status string, wait, handling time.Duration) {
	HistoryMessagesTotal.WithLabelValues(status, transport).Inc()
	HistoryWaitDuration.WithLabelValues(transport).Observe(float64(wait.Milliseconds()))
	HistoryHandlingDuration.WithLabelValues(transport, status).Observe(float64(handling.Milliseconds()))
}

func IncHistorySkipped(reason string) {
	HistorySkippedTotal.WithLabelValues(reason).Inc()
}

func IncHistorySaveError(transport string) {
	HistorySaveErrorsTotal.WithLabelValues(transport).Inc()
}

func IncStorageQuery(storage, operation, status string) {
	StorageQueriesTotal.WithLabelValues(storage, operation, status).Inc()
}

func ObserveStorageQueryDuration(storage, operation string, duration time.Duration) {
	StorageQueryDuration.WithLabelValues(storage, operation).Observe(float64(duration.Milliseconds()))
}

// TrackStorageQuery starts timing a storage operation. Call the returned
// func with the operation's error when it completes.
func TrackStorageQuery(storage, operation string) func(err error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		IncStorageQuery(storage, operation, status)
		ObserveStorageQueryDuration(storage, operation, time.Since(start))
	}
}

func AddStoragePurged(storage string, n int) {
	StoragePurgedTotal.WithLabelValues(storage).Add(float64(n))
}

func SetWorkersActive(count int) {
	WorkersActive.Set(float64(count))
}

func IncWorkerHeartbeat(status string) {
	WorkerHeartbeatsTotal.WithLabelValues(status).Inc()
}

func SetTransportQueuedMessages(transport string, count int) {
	TransportQueuedMessages.WithLabelValues(transport).Set(float64(count))
}

func SetAlertTriggered(rule, severity string, triggered bool) {
	value := 0.0
	if triggered {
		value = 1
	}
	AlertTriggered.WithLabelValues(rule, severity).Set(value)
}

func IncRetryAttempt(operation string) {
	RetryAttemptsTotal.WithLabelValues(operation).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(group, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(group, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}
