// Package metrics exposes gateway operational counters via prometheus.
//
// Collectors live on a dedicated registry (not the global default) so tests
// and embedders control exactly what /metrics serves. The server wires the
// counters to discovery scans, registry events, and proxy responses.
package metrics
