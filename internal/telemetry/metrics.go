// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for the comment pipeline.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	commentsTotal      *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	generationFailures *prometheus.CounterVec
	replyShapes        *prometheus.CounterVec
)

// Init registers metrics (idempotent). Helpers are no-ops until Init runs.
func Init() {
	once.Do(func() {
		commentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aituber_comments_total",
			Help: "Comments processed by outcome (replied, rejected, failed)",
		}, []string{"outcome"})
		stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aituber_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"})
		generationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aituber_generation_failures_total",
			Help: "Text generation failures by agent",
		}, []string{"agent"})
		replyShapes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aituber_reply_parse_total",
			Help: "Reply generator outputs by recognised shape",
		}, []string{"shape"})
	})
}

// CountComment records the final outcome of one comment.
func CountComment(outcome string) {
	if commentsTotal != nil {
		commentsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	if stageDuration != nil {
		stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// CountGenerationFailure records a failed call to the text generation backend.
func CountGenerationFailure(agent string) {
	if generationFailures != nil {
		generationFailures.WithLabelValues(agent).Inc()
	}
}

// CountReplyShape records which output shape the reply parser recognised.
func CountReplyShape(shape string) {
	if replyShapes != nil {
		replyShapes.WithLabelValues(shape).Inc()
	}
}
