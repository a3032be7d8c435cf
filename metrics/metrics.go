// Package metrics provides Prometheus collectors for console operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "console"

var (
	// requestDuration is a histogram of vendor API call duration in seconds.
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of vendor API calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	// requestsTotal is a counter of vendor API calls.
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of vendor API calls",
		},
		[]string{"operation", "status"}, // status: success, error
	)

	// streamChunksTotal is a counter of streamed chunks delivered to consumers.
	streamChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_chunks_total",
			Help:      "Total number of streamed chunks delivered",
		},
	)

	// jobPollsTotal is a counter of long-running job status polls.
	jobPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_polls_total",
			Help:      "Total number of long-running job status polls",
		},
	)

	// liveSessionsActive is a gauge of currently connected live sessions.
	liveSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of currently connected live duplex sessions",
		},
	)

	// playbackScheduledSeconds counts audio seconds scheduled for playback.
	playbackScheduledSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_scheduled_seconds_total",
			Help:      "Total seconds of model audio scheduled for playback",
		},
	)
)

func init() {
	prometheus.MustRegister(
		requestDuration,
		requestsTotal,
		streamChunksTotal,
		jobPollsTotal,
		liveSessionsActive,
		playbackScheduledSeconds,
	)
}

// ObserveRequest records one vendor API call.
func ObserveRequest(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	requestsTotal.WithLabelValues(operation, status).Inc()
	requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// CountChunk records one delivered stream chunk.
func CountChunk() {
	streamChunksTotal.Inc()
}

// CountJobPoll records one job status poll.
func CountJobPoll() {
	jobPollsTotal.Inc()
}

// LiveSessionStarted increments the active live session gauge.
func LiveSessionStarted() {
	liveSessionsActive.Inc()
}

// LiveSessionEnded decrements the active live session gauge.
func LiveSessionEnded() {
	liveSessionsActive.Dec()
}

// AddScheduledPlayback records seconds of audio scheduled for playback.
func AddScheduledPlayback(seconds float64) {
	playbackScheduledSeconds.Add(seconds)
}
