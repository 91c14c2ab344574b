// Package otel publishes goNameAuth counters and the login latency histogram
// through OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter and
// an Int64ObservableGauge per latency bucket. A single callback reads
// [goNameAuth.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
