// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Database query performance (SQLite)
// - API endpoint latency and throughput
// - Campaign dispatch and SMTP delivery
// - CSV import throughput

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlite_query_duration_seconds",
			Help:    "Duration of SQLite queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlite_query_errors_total",
			Help: "Total number of SQLite query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Email Delivery Metrics
	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of emails successfully handed to the SMTP server",
		},
		[]string{"strategy"}, // "blast", "individual", "header_only"
	)

	EmailsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_failed_total",
			Help: "Total number of email delivery failures",
		},
		[]string{"strategy", "error_code"},
	)

	CampaignDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_dispatch_duration_seconds",
			Help:    "Duration of campaign dispatch operations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"strategy"},
	)

	CampaignRecipients = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campaign_recipients",
			Help:    "Number of resolved primary recipients per dispatch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)

	CampaignsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaigns_dispatched_total",
			Help: "Total number of campaign dispatches by final status",
		},
		[]string{"strategy", "status"}, // status: "sent", "failed"
	)

	ScheduledCampaignsTriggered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduled_campaigns_triggered_total",
			Help: "Total number of campaigns dispatched by the scheduler",
		},
	)

	// SMTP Circuit Breaker Metrics
	SMTPBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smtp_circuit_breaker_state",
			Help: "SMTP circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Import Metrics
	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Total number of CSV import rows by result",
		},
		[]string{"result"}, // "imported", "skipped", "error"
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "import_duration_seconds",
			Help:    "Duration of CSV imports in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordEmailSent records a successful email handoff
func RecordEmailSent(strategy string) {
	EmailsSentTotal.WithLabelValues(strategy).Inc()
}

// RecordEmailFailed records a failed email delivery
func RecordEmailFailed(strategy, errorCode string) {
	EmailsFailedTotal.WithLabelValues(strategy, errorCode).Inc()
}

// RecordDispatch records a completed campaign dispatch
func RecordDispatch(strategy, status string, recipients int, duration time.Duration) {
	CampaignDispatchDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	CampaignRecipients.Observe(float64(recipients))
	CampaignsDispatchedTotal.WithLabelValues(strategy, status).Inc()
}

// RecordImport records a completed CSV import
func RecordImport(imported, skipped, errored int, duration time.Duration) {
	ImportRowsTotal.WithLabelValues("imported").Add(float64(imported))
	ImportRowsTotal.WithLabelValues("skipped").Add(float64(skipped))
	ImportRowsTotal.WithLabelValues("error").Add(float64(errored))
	ImportDuration.Observe(duration.Seconds())
}
