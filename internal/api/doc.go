// Package api hosts the optional ops HTTP server that runs alongside a
// harvest session. Routes:
//   - GET /healthz and /readyz for health checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/session for the live view of the current session, and
//     /v1/session/{id} for a specific one.
package api
