// Package sttp implements the Streaming Telemetry Transport Protocol
// (IEEE 2664) transport core: a publisher and subscriber engine for
// time-series measurement streams over TCP command channels with an
// optional UDP data channel.
//
// # Architecture
//
// The module separates wire-level concerns from engine orchestration:
//
//	┌─────────────────────────────────────┐
//	│      publisher / subscriber          │  Engines: connection
//	│   (routing, reconnect, callbacks)     │  lifecycle, backpressure
//	└─────────────────────────────────────┘
//	           ↓ frames via
//	┌─────────────────────────────────────┐
//	│            protocol                  │  Command/response codes,
//	│   (handshake, operational modes)     │  frame codec
//	└─────────────────────────────────────┘
//	           ↓ encodes via
//	┌─────────────────────────────────────┐
//	│       compact / tssc / wire          │  Measurement codecs,
//	│  (point encoding, delta compression) │  primitive types
//	└─────────────────────────────────────┘
//
// Supporting packages provide the data model (measurement, guid, ticks,
// signalindexcache, dataset), transport security (cipher, pkg/tlsutil,
// pkg/acme), and the ambient stack shared across both engines (errors,
// health, metric, component, config, natsbridge, httpapi).
//
// # Packages
//
// Protocol core:
//   - ticks: STTP tick time representation and conversion
//   - guid: 128-bit signal identifiers with RPC wire byte order
//   - wire: big-endian primitive and length-prefixed string codecs
//   - measurement: the Measurement tuple and its flags
//   - signalindexcache: runtime-index to SignalID mapping
//   - compact: compact measurement binary codec
//   - tssc: stateful delta/XOR measurement stream codec
//   - protocol: command/response framing and handshake state machine
//   - cipher: AES-256-GCM key generation and rotation for the UDP data channel
//   - dataset: copy-on-write metadata tables exchanged during handshake
//
// Engines:
//   - publisher: routing engine, per-subscriber signal intersection, TLS listener
//   - subscriber: lazy measurement stream, auto-reconnect with backoff
//
// Ambient stack:
//   - errors: classified error taxonomy (transient/invalid/fatal)
//   - health: health check aggregation and sanitization
//   - metric: Prometheus-backed metrics registry
//   - component: lifecycle interfaces and struct-tag config schema generation
//   - config: YAML configuration loading and schema validation
//   - natsclient: circuit-breaker-wrapped NATS connection management
//   - natsbridge: best-effort, non-durable observability event publication
//   - httpapi: health/metrics/websocket ops surface, separate from the wire protocol
//   - pkg/buffer, pkg/cache, pkg/retry, pkg/worker: generic concurrency primitives
//   - pkg/tlsutil, pkg/acme, pkg/security: TLS and certificate management
//
// # Usage
//
// Publishing measurements:
//
//	pub, err := publisher.New(publisher.Config{ListenAddress: ":7165"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := pub.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	pub.Publish(measurements)
//
// Subscribing to a publisher:
//
//	sub := subscriber.New(subscriber.Config{ConnectionString: "server=localhost:7165"})
//	if err := sub.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	for m := range sub.Measurements() {
//	    process(m)
//	}
//
// # Design Principles
//
// Side channels never carry measurement data:
//   - natsbridge and httpapi are observability-only; disabling either
//     must not change routing or delivery behavior on the STTP wire path.
//
// Codec statefulness is explicit:
//   - tssc.Encoder/tssc.Decoder hold per-signal delta state; callers own
//     the lifetime of that state per connection and reset it on resync.
//
// Testability:
//   - Explicit dependencies, no globals
//   - Integration tests with testcontainers for NATS and ACME
package sttp
