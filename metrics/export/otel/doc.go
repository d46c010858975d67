// Package otel provides OpenTelemetry metric exporter bindings for the
// session core counters.
//
// [NewOTelExporter] registers an Int64ObservableCounter per core counter.
// A single callback reads [sessioncore.Manager.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate manager state.
package otel
