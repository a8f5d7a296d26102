// Package prometheus exposes goSession metrics as a prometheus.Collector.
//
// [NewPrometheusExporter] wraps a Manager; register the exporter with any
// registry, or mount [PrometheusExporter.Handler] which serves it from a
// private one. Counter names are gosession_*_total; the single histogram is
// gosession_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate Manager state.
package prometheus
