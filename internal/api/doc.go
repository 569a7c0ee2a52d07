// Package api hosts the operator HTTP server that runs alongside a mining
// run. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/stats for item counts by state.
package api
