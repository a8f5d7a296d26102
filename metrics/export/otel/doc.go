// Package otel exports goSession metrics through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per session counter and
// Int64ObservableGauge instruments per login-latency bucket. A single callback
// reads Manager.MetricsSnapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate Manager state.
package otel
