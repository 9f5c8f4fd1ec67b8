// Package metrics собирает метрики Prometheus для сервиса и монитора.
// Все методы Collector безопасны для nil, чтобы сервисы можно было собирать без метрик.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "team4job"

// Collector Prometheus метрики маркетплейса.
type Collector struct {
	monitorAlerts *prometheus.CounterVec
	monitorRuns   prometheus.Counter
	bidsPlaced    prometheus.Counter
	jobEvents     *prometheus.CounterVec
	payments      *prometheus.CounterVec
	aiRequests    *prometheus.CounterVec
	webhooks      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewCollector создаёт метрики и регистрирует их в reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		monitorAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_alerts_total",
			Help:      "Number of alerts raised by the SLA monitor",
		}, []string{"check", "level"}),
		monitorRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_runs_total",
			Help:      "Number of SLA monitor passes",
		}),
		bidsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bids_placed_total",
			Help:      "Number of accepted bid placements",
		}),
		jobEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Job status transitions by target status",
		}, []string{"status"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Escrow operations by kind and result",
		}, []string{"operation", "result"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "AI flow invocations by result",
		}, []string{"flow", "result"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Gateway webhooks by verification result",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.monitorAlerts,
		c.monitorRuns,
		c.bidsPlaced,
		c.jobEvents,
		c.payments,
		c.aiRequests,
		c.webhooks,
		c.httpRequests,
		c.httpLatency,
	)
	return c
}

func (c *Collector) RecordMonitorRun() {
	if c == nil {
		return
	}
	c.monitorRuns.Inc()
}

// RecordMonitorAlert учитывает одно сработавшее правило монитора.
func (c *Collector) RecordMonitorAlert(check, level string) {
	if c == nil {
		return
	}
	c.monitorAlerts.WithLabelValues(check, level).Inc()
}

func (c *Collector) RecordBidPlaced() {
	if c == nil {
		return
	}
	c.bidsPlaced.Inc()
}

func (c *Collector) RecordJobTransition(status string) {
	if c == nil {
		return
	}
	c.jobEvents.WithLabelValues(status).Inc()
}

// RecordPayment operation: order, verify, fund, release, refund. result: ok или error.
func (c *Collector) RecordPayment(operation string, err error) {
	if c == nil {
		return
	}
	c.payments.WithLabelValues(operation, resultLabel(err)).Inc()
}

// RecordAI result: cache_hit, generated, quota_exceeded, invalid_output, error.
func (c *Collector) RecordAI(flow, result string) {
	if c == nil {
		return
	}
	c.aiRequests.WithLabelValues(flow, result).Inc()
}

func (c *Collector) RecordWebhook(valid bool) {
	if c == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "invalid_signature"
	}
	c.webhooks.WithLabelValues(result).Inc()
}

// ObserveHTTP учитывает обработанный HTTP запрос.
func (c *Collector) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler отдаёт метрики из gatherer в формате Prometheus.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
