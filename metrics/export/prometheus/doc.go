// Package prometheus renders goSession store metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads [goSession.Store.MetricsSnapshot] on every
// scrape. Counter names are prefixed gosession_*_total; the single histogram
// is gosession_identity_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate store state.
package prometheus
