// Package metrics defines the delivery metrics sink interface and the
// registry sinks are created from. Sinks such as the Prometheus and Influx
// implementations in infra/metrics record relay attempts, dispatched
// periods and ingests; NewMetricsSink combines several configured sinks
// into a MultiSink.
package metrics
