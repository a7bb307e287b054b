package metrics

import "github.com/MarcinPiech/DHLAI/core/factory"

// Config defines settings for metrics sinks and the /metrics endpoint.
type Config struct {
	PrometheusEnabled bool                   `json:"prometheus_enabled" yaml:"prometheus_enabled"`
	PrometheusAddr    string                 `json:"prometheus_addr" yaml:"prometheus_addr"`
	Sinks             []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
}
