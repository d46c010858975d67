// Package prometheus renders the session core counters in Prometheus text
// exposition format without pulling in a client library.
//
// [PrometheusExporter.Handler] is mountable on any mux; [PrometheusExporter.Render]
// produces the raw exposition for tests and dumps.
package prometheus
