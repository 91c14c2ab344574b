// Package prometheus exposes goNameAuth metrics through prometheus/client_golang.
//
// [PrometheusExporter] is a prometheus.Collector that reads
// [goNameAuth.Engine.MetricsSnapshot] on every scrape. Counter names are
// prefixed lwn_*_total; the single histogram is lwn_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry; the exporter owns a private
//     registry and callers mount its Handler or register it themselves.
//   - Mutate engine state.
package prometheus
