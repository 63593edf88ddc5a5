package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics tracks cart mutation outcomes and latency.
type CartMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	reaped     prometheus.Counter
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart operations by name and outcome code.",
	}, []string{"op", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_duration_seconds",
		Help:    "Cart operation latency including lock wait.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	reaped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_expired_deleted_total",
		Help: "Carts removed by the expiry job.",
	})
	reg.MustRegister(operations, latency, reaped)
	return &CartMetrics{
		operations: operations,
		latency:    latency,
		reaped:     reaped,
	}
}

// Observe records one finished operation. outcome is "ok" or an error code.
func (c *CartMetrics) Observe(op, outcome string, duration time.Duration) {
	if c == nil || c.operations == nil {
		return
	}
	op = normalizeLabel(op)
	if outcome == "" {
		outcome = "ok"
	}
	c.operations.WithLabelValues(op, outcome).Inc()
	c.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// AddReaped counts carts deleted by the expiry sweep.
func (c *CartMetrics) AddReaped(n int64) {
	if c == nil || c.reaped == nil || n <= 0 {
		return
	}
	c.reaped.Add(float64(n))
}
