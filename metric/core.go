package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics shared by the publisher and
// subscriber engines (not TSSC/codec-internal metrics, which components
// register for themselves via MetricsRegistrar).
type Metrics struct {
	// Connection lifecycle
	ConnectionsActive  *prometheus.GaugeVec
	ConnectionsTotal   *prometheus.CounterVec
	ConnectionDuration *prometheus.HistogramVec

	// Measurement throughput
	MeasurementsSent     *prometheus.CounterVec
	MeasurementsReceived *prometheus.CounterVec
	BytesSent            *prometheus.CounterVec
	BytesReceived        *prometheus.CounterVec

	// Codec
	TSSCCompressionRatio *prometheus.HistogramVec
	CompactEncodeErrors  *prometheus.CounterVec

	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	// NATS observability bridge
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "sttp",
				Subsystem: "connection",
				Name:      "active",
				Help:      "Currently active connections",
			},
			[]string{"role"},
		),

		ConnectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sttp",
				Subsystem: "connection",
				Name:      "total",
				Help:      "Total connections established",
			},
			[]string{"role"},
		),

		ConnectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sttp",
				Subsystem: "connection",
				Name:      "duration_seconds",
				Help:      "Connection lifetime in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"role"},
		),

		MeasurementsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sttp",
				Subsystem: "measurements",
				Name:      "sent_total",
				Help:      "Total measurements sent by the publisher",
			},
			[]string{"connection"},
		),

		MeasurementsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sttp",
				Subsystem: "measurements",
				Name:      "received_total",
				Help:      "Total measurements received by the subscriber",
			},
			[]string{"connection"},
		),

		BytesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sttp",
				Subsystem: "wire",
				Name:      "bytes_sent_total",
				Help:      "Total wire bytes sent",
			},
			[]string{"connection", "channel"},
		),

		BytesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sttp",
				Subsystem: "wire",
				Name:      "bytes_received_total",
				Help:      "Total wire bytes received",
			},
			[]string{"connection", "channel"},
		),

		TSSCCompressionRatio: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sttp",
				Subsystem: "tssc",
				Name:      "compression_ratio",
				Help:      "Compressed bytes / uncompressed compact bytes per flushed block",
				Buckets:   []float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.35, 0.5, 0.75, 1.0},
			},
			[]string{"connection"},
		),

		CompactEncodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sttp",
				Subsystem: "codec",
				Name:      "encode_errors_total",
				Help:      "Compact/TSSC encode or decode errors",
			},
			[]string{"connection", "codec"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sttp",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of classified errors",
			},
			[]string{"connection", "class"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "sttp",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sttp",
				Subsystem: "natsbridge",
				Name:      "connected",
				Help:      "Observability bridge NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sttp",
				Subsystem: "natsbridge",
				Name:      "rtt_milliseconds",
				Help:      "Observability bridge NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sttp",
				Subsystem: "natsbridge",
				Name:      "reconnects_total",
				Help:      "Total number of observability bridge NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sttp",
				Subsystem: "natsbridge",
				Name:      "circuit_breaker",
				Help:      "Observability bridge circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// RecordConnectionEstablished increments the active/total connection gauges for a role.
func (c *Metrics) RecordConnectionEstablished(role string) {
	c.ConnectionsActive.WithLabelValues(role).Inc()
	c.ConnectionsTotal.WithLabelValues(role).Inc()
}

// RecordConnectionClosed decrements the active gauge and records the connection's lifetime.
func (c *Metrics) RecordConnectionClosed(role string, lifetime time.Duration) {
	c.ConnectionsActive.WithLabelValues(role).Dec()
	c.ConnectionDuration.WithLabelValues(role).Observe(lifetime.Seconds())
}

// RecordMeasurementsSent adds to the sent-measurements counter for a connection.
func (c *Metrics) RecordMeasurementsSent(connection string, n int) {
	c.MeasurementsSent.WithLabelValues(connection).Add(float64(n))
}

// RecordMeasurementsReceived adds to the received-measurements counter for a connection.
func (c *Metrics) RecordMeasurementsReceived(connection string, n int) {
	c.MeasurementsReceived.WithLabelValues(connection).Add(float64(n))
}

// RecordBytesSent adds to the sent-bytes counter for a connection/channel pair.
func (c *Metrics) RecordBytesSent(connection, channel string, n int) {
	c.BytesSent.WithLabelValues(connection, channel).Add(float64(n))
}

// RecordBytesReceived adds to the received-bytes counter for a connection/channel pair.
func (c *Metrics) RecordBytesReceived(connection, channel string, n int) {
	c.BytesReceived.WithLabelValues(connection, channel).Add(float64(n))
}

// RecordTSSCRatio observes a TSSC block's compression ratio.
func (c *Metrics) RecordTSSCRatio(connection string, compressed, uncompressed int) {
	if uncompressed == 0 {
		return
	}
	c.TSSCCompressionRatio.WithLabelValues(connection).Observe(float64(compressed) / float64(uncompressed))
}

// RecordError increments the classified-error counter.
func (c *Metrics) RecordError(connection, class string) {
	c.ErrorsTotal.WithLabelValues(connection, class).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordNATSStatus updates observability-bridge NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSRTT updates observability-bridge NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments the observability-bridge reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates observability-bridge circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
