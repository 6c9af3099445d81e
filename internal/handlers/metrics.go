package handlers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Brownie44l1/depth-api/internal/pipeline"
)

// Metrics are the Prometheus collectors of the depth endpoints.
type Metrics struct {
	requests  *prometheus.CounterVec
	stages    *prometheus.HistogramVec
	cacheHits prometheus.Counter
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depth",
			Name:      "requests_total",
			Help:      "Requests handled, by endpoint and HTTP status.",
		}, []string{"endpoint", "status"}),
		stages: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "depth",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "depth",
			Name:      "cache_hits_total",
			Help:      "Image predictions served from the result cache.",
		}),
	}
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) observeRun(t pipeline.Timings) {
	m.observeStage("resize", t.Resize)
	m.observeStage("encode", t.Encode)
	m.observeStage("infer", t.Infer)
	m.observeStage("decode", t.Decode)
}
