package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistration(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	// touch metrics so they are exported
	deliveriesTotal.WithLabelValues("bags", "sent").Inc()
	deliveryLatency.WithLabelValues("bags").Observe(0.1)
	retriesTotal.Inc()
	rateLimitWaits.Inc()
	periodsDelivered.Inc()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[*mf.Name] = true
	}
	expected := []string{
		"dhlai_deliveries_total",
		"dhlai_delivery_latency_seconds",
		"dhlai_delivery_retries_total",
		"dhlai_rate_limit_waits_total",
		"dhlai_periods_dispatched_total",
	}
	for _, n := range expected {
		if !names[n] {
			t.Errorf("metric %s not registered", n)
		}
	}
}
