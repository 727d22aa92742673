// Package metrics exposes the Prometheus collectors of the cash engine.
// Collectors are registered on the default registry at init through promauto.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP ──────────────────────────────────────────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency distributions.",
		Buckets: []float64{0.05, 0.1, 0.3, 0.5, 1.0, 2.0, 5.0},
	}, []string{"method", "path"})
)

// ── Business ──────────────────────────────────────────────────────────────────

var (
	CashPaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cash_payments_total",
		Help: "Cash payments recorded, by approval path (auto|dual_control).",
	}, []string{"approval"})

	CashCollectedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cash_collected_amount_total",
		Help: "Sum of tax amounts collected in cash.",
	})

	TransactionsVoidedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cash_transactions_voided_total",
		Help: "Cash transactions voided by an administrator.",
	})

	SessionsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cash_sessions_opened_total",
		Help: "Cash sessions opened.",
	})

	SessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cash_sessions_closed_total",
		Help: "Cash sessions closed, by outcome (balanced|review).",
	}, []string{"outcome"})

	GatewayPaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_payments_confirmed_total",
		Help: "Gateway payments confirmed, by method.",
	}, []string{"method"})

	AuditWriteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cash_audit_write_failures_total",
		Help: "Audit entries that could not be appended, by action.",
	}, []string{"action"})

	AuditChainValid = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cash_audit_chain_valid",
		Help: "1 when the last scheduled chain verification passed, 0 otherwise.",
	})

	NotificationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cash_notification_failures_total",
		Help: "Notifications that could not be dispatched, by kind.",
	}, []string{"kind"})

	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_jobs_processed_total",
		Help: "Background jobs processed, by queue and outcome (ok|retry|dead).",
	}, []string{"queue", "outcome"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "upstream_circuit_breaker_state",
		Help: "Circuit breaker position per upstream (0 closed, 1 open, 2 half-open).",
	}, []string{"upstream"})

	SchedulerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_runs_total",
		Help: "Scheduled task runs, by task and outcome (ok|error|skipped).",
	}, []string{"task", "outcome"})

	PaymentCompletionsResumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_completions_resumed_total",
		Help: "Paid payments re-driven through the success path by the recovery sweep, by outcome.",
	}, []string{"outcome"})
)

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		if path == "" {
			return
		}
		status := strconv.Itoa(c.Writer.Status())
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
