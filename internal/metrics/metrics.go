// Package metrics exposes Prometheus collectors for HTTP traffic and ledger
// computations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splitledger"

// Registry owns every collector of the process. Methods are safe on a nil
// *Registry so components can be built without metrics in tests.
type Registry struct {
	reg *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	balanceComputations prometheus.Counter
	unbalancedLedgers   prometheus.Counter
	settlementTransfers prometheus.Histogram
	remindersSent       *prometheus.CounterVec
}

// New creates a Registry with the Go runtime and process collectors attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		balanceComputations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_computations_total",
			Help:      "Group settlements computed.",
		}),
		unbalancedLedgers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unbalanced_ledgers_total",
			Help:      "Settlements whose balances did not sum to zero.",
		}),
		settlementTransfers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_transfers",
			Help:      "Transfers recommended per settlement.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Debt reminder emails by outcome.",
		}, []string{"status"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpDuration,
		r.balanceComputations,
		r.unbalancedLedgers,
		r.settlementTransfers,
		r.remindersSent,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Middleware records request counts and latency keyed by the matched route
// template, so /groups/:id is one series regardless of the ID.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveSettlement records one balance computation.
func (r *Registry) ObserveSettlement(transfers int, balanced bool) {
	if r == nil {
		return
	}
	r.balanceComputations.Inc()
	r.settlementTransfers.Observe(float64(transfers))
	if !balanced {
		r.unbalancedLedgers.Inc()
	}
}

// ReminderSent records the outcome of one reminder email.
func (r *Registry) ReminderSent(err error) {
	if r == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	r.remindersSent.WithLabelValues(status).Inc()
}
