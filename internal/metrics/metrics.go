package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Relay metrics
	RelayFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moss_relay_fetch_total",
			Help: "Relay fetch attempts by outcome",
		},
		[]string{"relay", "outcome"}, // "ok", "timeout", "error"
	)

	RelayPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moss_relay_publish_total",
			Help: "Relay publish attempts by outcome",
		},
		[]string{"relay", "outcome"}, // "acked", "rejected", "error"
	)

	RelayOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moss_relay_op_duration_seconds",
			Help:    "Relay operation duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"op"}, // "connect", "fetch", "publish"
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moss_events_dropped_total",
			Help: "Events dropped before rendering",
		},
		[]string{"reason"}, // "bad_signature", "no_subject", "duplicate", "filter_mismatch"
	)

	// Session metrics
	PollCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moss_poll_cycles_total",
			Help: "Completed poll cycles across live sessions",
		},
	)

	CommentsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moss_comments_submitted_total",
			Help: "Visitor comments submitted",
		},
	)

	ArticlesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moss_articles_published_total",
			Help: "Articles published to the network",
		},
	)

	// HTTP metrics (cmd/serve)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moss_http_requests_total",
			Help: "HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moss_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)
