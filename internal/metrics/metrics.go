package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "vulnreport"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	retries         *prometheus.CounterVec
	rateLimited     prometheus.Counter

	openFindings       *prometheus.GaugeVec
	windowFindings     *prometheus.GaugeVec
	incompleteProjects *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "GitLab API requests by response status code.",
		}, []string{"code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "GitLab API request duration including body read.",
			Buckets:   prometheus.DefBuckets,
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_retries_total",
			Help:      "GitLab API retries by reason.",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "GitLab API responses with status 429.",
		}),
		openFindings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_findings",
			Help:      "Open (detected) findings per group and severity.",
		}, []string{"group", "severity"}),
		windowFindings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_findings",
			Help:      "Findings created within the trailing window, any state.",
		}, []string{"group", "window_days", "severity"}),
		incompleteProjects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incomplete_projects_total",
			Help:      "Projects whose counts are incomplete because a fetch failed.",
		}, []string{"group"}),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.retries,
		m.rateLimited,
		m.openFindings,
		m.windowFindings,
		m.incompleteProjects,
	)
	return m
}

// ObserveRequest records one HTTP exchange. A zero code means the request
// failed before a response arrived.
func (m *Metrics) ObserveRequest(code int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if code != 0 {
		label = strconv.Itoa(code)
	}
	m.requests.WithLabelValues(label).Inc()
	m.requestDuration.Observe(d.Seconds())
}

func (m *Metrics) Retry(reason string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(reason).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) SetOpen(group, severity string, n int) {
	if m == nil {
		return
	}
	m.openFindings.WithLabelValues(group, severity).Set(float64(n))
}

func (m *Metrics) SetWindow(group string, days int, severity string, n int) {
	if m == nil {
		return
	}
	m.windowFindings.WithLabelValues(group, strconv.Itoa(days), severity).Set(float64(n))
}

func (m *Metrics) ProjectIncomplete(group string) {
	if m == nil {
		return
	}
	m.incompleteProjects.WithLabelValues(group).Inc()
}

// Push sends everything gathered by g to a Prometheus Pushgateway.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
