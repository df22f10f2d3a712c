// Package metrics 提供 Prometheus 指标，每个实例使用独立 registry。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cargotariff"

// Metrics 指标集合，nil 接收者上的方法均为空操作。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数，按 method/route/status
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 费率表对账结果，按 outcome
	ReconcileTotal *prometheus.CounterVec
	// 对账写入条目，按 kind（cargo_type_created/tariff_created/tariff_updated）
	ReconcileEntries *prometheus.CounterVec
	// 对账耗时
	ReconcileDuration prometheus.Histogram

	// 报价计算结果，按 outcome
	QuotesTotal *prometheus.CounterVec
	// 费率缓存命中，按 result（hit/miss/error）
	RateCacheTotal *prometheus.CounterVec

	// 审计事件发布结果，按 outcome
	AuditPublishTotal *prometheus.CounterVec
	// 审计事件消费结果，按 outcome
	AuditConsumeTotal *prometheus.CounterVec
}

// New 创建指标实例并注册到独立 registry。
func New(serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "Total HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ReconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "reconcile_total",
			Help:        "Rate table reconciliations by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		ReconcileEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "reconcile_entries_total",
			Help:        "Rows written by committed reconciliations",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "reconcile_duration_seconds",
			Help:        "Rate table reconciliation duration in seconds",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
		QuotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "quotes_total",
			Help:        "Insurance quotes by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		RateCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rate_cache_requests_total",
			Help:        "Rate cache lookups by result",
			ConstLabels: constLabels,
		}, []string{"result"}),
		AuditPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "audit_publish_total",
			Help:        "Audit event publications by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		AuditConsumeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "audit_consume_total",
			Help:        "Audit events consumed by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReconcileTotal,
		m.ReconcileEntries,
		m.ReconcileDuration,
		m.QuotesTotal,
		m.RateCacheTotal,
		m.AuditPublishTotal,
		m.AuditConsumeTotal,
	)
	return m
}

// Registry 返回底层 registry。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest 记录 HTTP 请求。
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordReconcile 记录一次对账。
func (m *Metrics) RecordReconcile(outcome string, seconds float64, cargoTypesCreated, tariffsCreated, tariffsUpdated int) {
	if m == nil {
		return
	}
	m.ReconcileTotal.WithLabelValues(outcome).Inc()
	m.ReconcileDuration.Observe(seconds)
	m.ReconcileEntries.WithLabelValues("cargo_type_created").Add(float64(cargoTypesCreated))
	m.ReconcileEntries.WithLabelValues("tariff_created").Add(float64(tariffsCreated))
	m.ReconcileEntries.WithLabelValues("tariff_updated").Add(float64(tariffsUpdated))
}

// RecordQuote 记录一次报价。
func (m *Metrics) RecordQuote(outcome string) {
	if m == nil {
		return
	}
	m.QuotesTotal.WithLabelValues(outcome).Inc()
}

// RecordRateCache 记录费率缓存查询。
func (m *Metrics) RecordRateCache(result string) {
	if m == nil {
		return
	}
	m.RateCacheTotal.WithLabelValues(result).Inc()
}

// RecordAuditPublish 记录审计事件发布。
func (m *Metrics) RecordAuditPublish(outcome string) {
	if m == nil {
		return
	}
	m.AuditPublishTotal.WithLabelValues(outcome).Inc()
}

// RecordAuditConsume 记录审计事件消费。
func (m *Metrics) RecordAuditConsume(outcome string) {
	if m == nil {
		return
	}
	m.AuditConsumeTotal.WithLabelValues(outcome).Inc()
}
