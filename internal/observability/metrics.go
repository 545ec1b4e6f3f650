package observability

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by SQL verb.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// AuthEvents counts registrations, logins and logouts by outcome.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_auth_events_total",
		Help: "Authentication events by type and outcome",
	}, []string{"event", "outcome"})

	// ContentMutations counts writes to posts and comments.
	ContentMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_content_mutations_total",
		Help: "Post and comment writes by entity and action",
	}, []string{"entity", "action"})

	// CacheLookups counts post cache hits and misses.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})
)

// ObserveQuery records the latency of one SQL statement, labelled by its leading verb.
func ObserveQuery(sql string, elapsed time.Duration) {
	DatabaseQueryLatency.WithLabelValues(sqlOperation(sql)).Observe(elapsed.Seconds())
}

func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	switch op := strings.ToLower(fields[0]); op {
	case "select", "insert", "update", "delete", "begin", "commit", "rollback", "create", "alter", "drop", "savepoint":
		return op
	default:
		return "other"
	}
}
