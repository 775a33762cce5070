// Package report implements C12: per-promise observation records, a
// structured (JSON Lines) sink and an aligned textual sink, outcome totals
// per (bundle, subtype), and Prometheus/OpenTelemetry instrumentation
// of the evaluation loop. Grounded on the teacher's pkg/telemetry package
// (metrics.go, tracer.go), reframed from infra-run telemetry to per-promise
// outcome reporting.
package report
