package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeOversized   = "oversized"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeRejected    = "unsupported_format"
	OutcomeFailed      = "normalize_failed"
	OutcomeError       = "error"
)

// Request triggers.
const (
	TriggerURL      = "url"
	TriggerPhoto    = "photo"
	TriggerDocument = "document"
)

type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	normalizeDuration prometheus.Histogram
	payloadBytes      prometheus.Histogram
	qualityAttempts   prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stickerbot_requests_total",
			Help: "Sticker requests by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stickerbot_request_duration_seconds",
			Help:    "Time from the inbound message to the last reply.",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		normalizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stickerbot_normalize_duration_seconds",
			Help:    "Decode, resize and encode time per image.",
			Buckets: prometheus.DefBuckets,
		}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stickerbot_payload_bytes",
			Help:    "Size of the encoded sticker.",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 8),
		}),
		qualityAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stickerbot_quality_attempts",
			Help:    "Reduced-quality encodes needed per sticker.",
			Buckets: prometheus.LinearBuckets(0, 1, 14),
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.normalizeDuration,
		m.payloadBytes,
		m.qualityAttempts,
	)
	return m
}

func (m *Metrics) ObserveRequest(trigger, outcome string, d time.Duration) {
	m.requestsTotal.WithLabelValues(trigger, outcome).Inc()
	m.requestDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (m *Metrics) ObserveNormalize(d time.Duration, payloadBytes, attempts int) {
	m.normalizeDuration.Observe(d.Seconds())
	m.payloadBytes.Observe(float64(payloadBytes))
	m.qualityAttempts.Observe(float64(attempts))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
