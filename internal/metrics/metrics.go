package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchbot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchbot_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Slack metrics
	SlackEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchbot_slack_events_received_total",
			Help: "Total number of Slack events received",
		},
		[]string{"kind"},
	)

	SlackEventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchbot_slack_events_failed_total",
			Help: "Total number of Slack events whose handling failed",
		},
		[]string{"kind"},
	)

	SlackMessagesIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchbot_slack_messages_indexed_total",
			Help: "Total number of Slack messages sent for indexing",
		},
		[]string{"status"},
	)

	// Query pipeline metrics
	QueriesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchbot_queries_processed_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "searchbot_query_duration_seconds",
			Help:    "Duration of query processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Vectara metrics
	VectaraAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchbot_vectara_api_calls_total",
			Help: "Total number of Vectara API calls",
		},
		[]string{"operation", "status"},
	)

	VectaraAPICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchbot_vectara_api_call_duration_seconds",
			Help:    "Duration of Vectara API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	VectaraAuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "searchbot_vectara_auth_failures_total",
			Help: "Total number of failed Vectara token requests",
		},
	)
)
