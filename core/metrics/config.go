package metrics

import "github.com/kilianp07/fleetassign/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	PrometheusEnabled bool                   `json:"prometheus_enabled"`
	PrometheusPort    string                 `json:"prometheus_port"`
	Sinks             []factory.ModuleConfig `json:"sinks"`
}
