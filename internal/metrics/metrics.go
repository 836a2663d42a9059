// Package metrics holds the Prometheus collectors shared by the HTTP layer,
// the processing pipeline, the progress hub and the range streamer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vv_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vv_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Processing pipeline
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vv_pipeline_runs_total",
			Help: "Finished pipeline runs by result (completed, failed)",
		},
		[]string{"result"},
	)

	PipelineRunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vv_pipeline_runs_in_flight",
			Help: "Pipeline runs currently executing",
		},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vv_pipeline_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	AnalyzerResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vv_analyzer_results_total",
			Help: "Analyzer outcomes by inspection mode and verdict",
		},
		[]string{"mode", "verdict"},
	)
)

// Progress broadcasting
var (
	BroadcastEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vv_broadcast_events_total",
			Help: "Progress events per delivery outcome (delivered, dropped, unrouted)",
		},
		[]string{"outcome"},
	)

	BroadcastSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vv_broadcast_subscribers",
			Help: "Live progress subscribers",
		},
	)
)

// Streaming
var (
	StreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vv_stream_requests_total",
			Help: "Stream responses by status code",
		},
		[]string{"status"},
	)

	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vv_stream_bytes_total",
			Help: "Bytes written to streaming clients",
		},
	)
)
