// Package metrics defines the sinks that record assignment activity. The
// base MetricsSink records per-order outcomes; optional recorder interfaces
// cover batch summaries, status transitions and commit conflicts. Sinks are
// built from configuration through NewMetricsSink and combined with
// MultiSink when more than one is configured.
package metrics
