package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// LifecycleOperations counts engagement operations by outcome.
	LifecycleOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_operations_total",
			Help: "Engagement lifecycle operations by name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// BidAcceptances counts accepted bids; idempotent re-accepts are labelled.
	BidAcceptances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bid_acceptances_total",
			Help: "Total number of bid acceptances",
		},
		[]string{"kind"}, // kind: first, repeat
	)

	// MilestonesMaterialized counts milestones created from project templates.
	MilestonesMaterialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "milestones_materialized_total",
			Help: "Milestones created from project milestone templates",
		},
	)

	// NotificationsDropped counts best-effort notifications that failed to enqueue.
	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notifications that could not be written to the outbox",
		},
		[]string{"type"},
	)

	// OutboxPublished counts dispatcher publish attempts.
	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Outbox events published to MQ by result",
		},
		[]string{"routing_key", "result"}, // result: sent, retry, failed
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(statement string, _ time.Duration) {
	SlowQueryCount.WithLabelValues(statement).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordLifecycleOperation records one engagement operation outcome.
func RecordLifecycleOperation(operation, outcome string) {
	LifecycleOperations.WithLabelValues(operation, outcome).Inc()
}

func IncrementBidAcceptance(repeat bool) {
	kind := "first"
	if repeat {
		kind = "repeat"
	}
	BidAcceptances.WithLabelValues(kind).Inc()
}

func AddMilestonesMaterialized(n int) {
	MilestonesMaterialized.Add(float64(n))
}

func IncrementNotificationDropped(kind string) {
	NotificationsDropped.WithLabelValues(kind).Inc()
}

func IncrementOutboxPublished(routingKey, result string) {
	OutboxPublished.WithLabelValues(routingKey, result).Inc()
}
