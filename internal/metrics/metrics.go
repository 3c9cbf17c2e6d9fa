// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "expenses"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	ExpenseEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expense_events_total",
		Help:      "Expense mutations by kind.",
	}, []string{"kind"})

	NotificationsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_written_total",
		Help:      "Notification rows written by fan-out.",
	})

	ReceiptOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipt_operations_total",
		Help:      "Object store operations on receipts by operation and result.",
	}, []string{"operation", "result"})

	AuditEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_entries_total",
		Help:      "Audit log writes by action and result.",
	}, []string{"action", "result"})

	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_subscribers",
		Help:      "Open server-sent event streams.",
	})

	LiveEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "live_events_dropped_total",
		Help:      "Events not delivered because a subscriber buffer was full.",
	})
)

// ObserveReceipt records the outcome of an object store call.
func ObserveReceipt(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ReceiptOperations.WithLabelValues(operation, result).Inc()
}
