// Package subscriber implements the STTP subscriber engine (spec.md
// §4.7): it drives the client side of the command-channel handshake,
// reassembles and decodes data packets (compact or TSSC, optionally
// arriving over UDP), and exposes a lazy, backpressured stream of
// measurements to the embedding application.
//
// A disconnect is never fatal to the consumer of Measurements unless
// auto-reconnect is disabled: the engine transparently reconnects with
// exponential backoff (pkg/retry) and resumes the stream once a fresh
// signal-index cache has been received.
package subscriber
