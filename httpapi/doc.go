// Package httpapi implements the optional operational HTTP/WS surface
// described in SPEC_FULL.md §4.11: a health endpoint, a Prometheus
// metrics endpoint, and a WebSocket feed of periodic connection
// statistics for operational dashboards. It is distinct from, and
// never a substitute for, the STTP wire protocol itself — nothing
// served here carries measurement payloads.
package httpapi
