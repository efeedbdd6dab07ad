// Package natsbridge implements the optional, best-effort observability
// bridge described in SPEC_FULL.md §4.10: publisher and subscriber
// engines report connection lifecycle, subscription, and error events
// to NATS subjects for external dashboards, never measurement data and
// never on the critical path of the STTP wire protocol itself.
//
// A nil *Bridge is a valid, fully inert bridge: every method is a no-op
// when the observability feature is disabled, so callers never need to
// branch on whether a bridge was configured.
package natsbridge
