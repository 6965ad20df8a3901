// Package otel binds goSession store metrics to an OpenTelemetry Meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per store counter
// and one Int64ObservableGauge per latency bucket. A single callback reads
// [goSession.Store.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate store state.
package otel
