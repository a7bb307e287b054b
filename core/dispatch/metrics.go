package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveriesTotal  *prometheus.CounterVec
	deliveryLatency  *prometheus.HistogramVec
	retriesTotal     prometheus.Counter
	rateLimitWaits   prometheus.Counter
	periodsDelivered prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Counter, prometheus.Counter, prometheus.Counter) {
	del := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dhlai_deliveries_total",
			Help: "Relay attempts by category and outcome",
		},
		[]string{"category", "outcome"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dhlai_delivery_latency_seconds",
			Help:    "Latency of a single relay attempt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)
	ret := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dhlai_delivery_retries_total",
			Help: "Number of retry attempts after a relay failure",
		},
	)
	wait := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dhlai_rate_limit_waits_total",
			Help: "Number of pauses enforced by the send rate limiter",
		},
	)
	per := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dhlai_periods_dispatched_total",
			Help: "Number of periods marked fully sent",
		},
	)
	return del, lat, ret, wait, per
}

func init() {
	deliveriesTotal, deliveryLatency, retriesTotal, rateLimitWaits, periodsDelivered = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(deliveriesTotal, deliveryLatency, retriesTotal, rateLimitWaits, periodsDelivered)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	deliveriesTotal, deliveryLatency, retriesTotal, rateLimitWaits, periodsDelivered = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
