package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the API, batch sends and webhooks.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	warmupBatchesTotal     *prometheus.CounterVec
	emailsSentTotal        *prometheus.CounterVec
	emailsFailedTotal      *prometheus.CounterVec
	mailSendDuration       *prometheus.HistogramVec
	batchesInflight        prometheus.Gauge
	webhookEventsTotal     *prometheus.CounterVec
	signatureFailuresTotal *prometheus.CounterVec
	quotaRejectionsTotal   prometheus.Counter
	quotaResetsTotal       prometheus.Counter
}

const namespace = "warmup_engine"

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		warmupBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warmup_batches_total",
				Help:      "Warm-up batches by warm-up day and outcome.",
			},
			[]string{"day", "outcome"},
		),
		emailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_sent_total",
				Help:      "Emails accepted by the mail provider.",
			},
			[]string{"provider"},
		),
		emailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_failed_total",
				Help:      "Emails that could not be handed to the mail provider.",
			},
			[]string{"provider", "reason"},
		),
		mailSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mail_send_duration_seconds",
				Help:      "Mail provider call duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		batchesInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "warmup_batches_inflight",
				Help:      "Warm-up batches currently sending.",
			},
		),
		webhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Inbound webhook events by provider, normalized type, and outcome.",
			},
			[]string{"provider", "type", "outcome"},
		),
		signatureFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_signature_failures_total",
				Help:      "Webhook deliveries rejected by signature verification.",
			},
			[]string{"provider"},
		),
		quotaRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_rejections_total",
				Help:      "Sends refused because the user's quota was exhausted.",
			},
		),
		quotaResetsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_resets_total",
				Help:      "Quota records rolled over by the periodic resetter.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.warmupBatchesTotal,
		m.emailsSentTotal,
		m.emailsFailedTotal,
		m.mailSendDuration,
		m.batchesInflight,
		m.webhookEventsTotal,
		m.signatureFailuresTotal,
		m.quotaRejectionsTotal,
		m.quotaResetsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) ObserveWarmupBatch(day int, outcome string) {
	if m == nil {
		return
	}
	m.warmupBatchesTotal.WithLabelValues(strconv.Itoa(day), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncEmailSent(provider string) {
	if m == nil {
		return
	}
	m.emailsSentTotal.WithLabelValues(normalizeLabel(provider)).Inc()
}

func (m *Metrics) IncEmailFailed(provider string, reason string) {
	if m == nil {
		return
	}
	m.emailsFailedTotal.WithLabelValues(normalizeLabel(provider), normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveMailSendDuration(provider string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mailSendDuration.WithLabelValues(normalizeLabel(provider)).Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncBatchInFlight() {
	if m == nil {
		return
	}
	m.batchesInflight.Inc()
}

func (m *Metrics) DecBatchInFlight() {
	if m == nil {
		return
	}
	m.batchesInflight.Dec()
}

func (m *Metrics) IncWebhookEvent(provider string, eventType string, outcome string) {
	if m == nil {
		return
	}
	m.webhookEventsTotal.WithLabelValues(normalizeLabel(provider), normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncSignatureFailure(provider string) {
	if m == nil {
		return
	}
	m.signatureFailuresTotal.WithLabelValues(normalizeLabel(provider)).Inc()
}

func (m *Metrics) IncQuotaRejected() {
	if m == nil {
		return
	}
	m.quotaRejectionsTotal.Inc()
}

func (m *Metrics) AddQuotaResets(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.quotaResetsTotal.Add(float64(n))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
