package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pixelgrid"

// Collector implements the use-case Recorder on Prometheus and exposes the HTTP series
// recorded by the metrics middleware.
type Collector struct {
	gatherer prometheus.Gatherer

	casAttempts       *prometheus.CounterVec
	lockCells         *prometheus.CounterVec
	settlements       *prometheus.CounterVec
	compensations     *prometheus.CounterVec
	manualRefundsOpen prometheus.Gauge
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewCollector registers on a fresh registry so that tests and multiple app instances in
// one process never collide.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return NewCollectorWith(reg, reg)
}

func NewCollectorWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Collector {
	c := &Collector{
		gatherer: gatherer,
		casAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cas_attempts_total",
			Help:      "Grid document CAS attempts by operation and outcome.",
		}, []string{"op", "outcome"}),
		lockCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_cells_total",
			Help:      "Cells granted or refused by lock operations.",
		}, []string{"op", "result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Finalization outcomes, including rejection reasons.",
		}, []string{"outcome"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Refund compensation outcomes.",
		}, []string{"outcome"}),
		manualRefundsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "manual_refunds_open",
			Help:      "Manual refund records awaiting an operator.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
	reg.MustRegister(c.casAttempts, c.lockCells, c.settlements, c.compensations,
		c.manualRefundsOpen, c.httpRequests, c.httpDuration)
	return c
}

func (c *Collector) CASAttempt(op, outcome string) {
	c.casAttempts.WithLabelValues(op, outcome).Inc()
}

func (c *Collector) LockResult(op string, granted, conflicts int) {
	c.lockCells.WithLabelValues(op, "granted").Add(float64(granted))
	c.lockCells.WithLabelValues(op, "refused").Add(float64(conflicts))
}

func (c *Collector) Settlement(outcome string) {
	c.settlements.WithLabelValues(outcome).Inc()
}

func (c *Collector) Compensation(outcome string) {
	c.compensations.WithLabelValues(outcome).Inc()
}

func (c *Collector) ManualRefundsOpen(n int) {
	c.manualRefundsOpen.Set(float64(n))
}

func (c *Collector) ObserveHTTP(method, route string, status int, seconds float64) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
