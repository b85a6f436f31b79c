// Package api hosts the status server that runs beside a crawl. Routes:
//   - GET /healthz and /readyz for probes. readyz turns 200 once a session is
//     attached.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/session for the live counts and state of the running session.
//   - GET /v1/sessions/{session_id} for the stored lifecycle record.
package api
