package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_written_total",
		Help: "Total number of records inserted, updated or deleted",
	}, []string{"entity", "operation"})

	ValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_failures_total",
		Help: "Total number of rejected record actions",
	}, []string{"entity", "kind"})

	StockRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_rejections_total",
		Help: "Total number of sale items rejected for insufficient stock",
	})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Total number of low stock alerts raised",
	})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "login_attempts_total",
		Help: "Total number of login attempts",
	}, []string{"result"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Total number of events published",
	}, []string{"event_type"})

	DBOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_operation_duration_seconds",
		Help:    "Latency of database operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
