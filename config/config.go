package config

import (
	"time"

	"github.com/c360/sttp/pkg/security"
)

// ReconnectBackoff configures the subscriber engine's auto-reconnect
// delay (spec.md §4.7): base 1s, cap 30s, factor 2, jitter ±25% by
// default.
type ReconnectBackoff struct {
	BaseMs int     `json:"base_ms" yaml:"base_ms" schema:"type:int,description:Initial backoff delay in milliseconds,category:advanced,default:1000"`
	CapMs  int     `json:"cap_ms" yaml:"cap_ms" schema:"type:int,description:Maximum backoff delay in milliseconds,category:advanced,default:30000"`
	Factor float64 `json:"factor" yaml:"factor" schema:"type:float,description:Backoff multiplier applied after each attempt,category:advanced,default:2"`
	Jitter float64 `json:"jitter" yaml:"jitter" schema:"type:float,description:Randomized jitter fraction applied to each delay,category:advanced,default:0.25"`
}

// DefaultReconnectBackoff matches spec.md §4.7's stated defaults.
func DefaultReconnectBackoff() ReconnectBackoff {
	return ReconnectBackoff{BaseMs: 1000, CapMs: 30000, Factor: 2, Jitter: 0.25}
}

// UDPDataChannel configures the optional unreliable data channel
// (spec.md §4.5). A nil *UDPDataChannel on SubscriberConfig means the
// subscriber negotiates TCP-only delivery.
type UDPDataChannel struct {
	Port      uint16 `json:"port,omitempty" yaml:"port,omitempty" schema:"type:int,description:UDP port to bind or connect to,category:basic,min:0,max:65535"`
	Interface string `json:"interface,omitempty" yaml:"interface,omitempty" schema:"type:string,description:Local interface address to bind the UDP socket to,category:advanced"`
	Encrypt   bool   `json:"encrypt,omitempty" yaml:"encrypt,omitempty" schema:"type:bool,description:Negotiate AES-256-GCM cipher-key rotation for this channel,category:basic"`
}

// NATSBridgeConfig configures the optional, best-effort observability
// bridge (spec.md SPEC_FULL §4.10). It never carries measurement data.
type NATSBridgeConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled" schema:"type:bool,description:Publish connection/status/error events to NATS,category:basic"`
	URL           string `json:"url,omitempty" yaml:"url,omitempty" schema:"type:string,description:NATS server URL,category:basic,default:nats://localhost:4222"`
	SubjectPrefix string `json:"subject_prefix,omitempty" yaml:"subject_prefix,omitempty" schema:"type:string,description:Subject prefix events are published under,category:advanced,default:sttp.events"`
}

// OpsConfig configures the optional HTTP/WS operational surface
// (spec.md SPEC_FULL §4.11). It is distinct from, and never a
// substitute for, the STTP wire protocol.
type OpsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled" schema:"type:bool,description:Serve /healthz, /metrics and /ws/status,category:basic"`
	ListenAddress string `json:"listen_address,omitempty" yaml:"listen_address,omitempty" schema:"type:string,description:Address the ops HTTP server listens on,category:basic,default::8080"`
}

// OperationalModesConfig is the subscriber's one-time
// DefineOperationalModes negotiation (spec.md §4.1).
type OperationalModesConfig struct {
	UseUTF16LE               bool `json:"use_utf16le" yaml:"use_utf16le" schema:"type:bool,description:Negotiate UTF-16LE string encoding instead of UTF-8,category:advanced"`
	CompressMetadata         bool `json:"compress_metadata" yaml:"compress_metadata" schema:"type:bool,description:gzip-compress metadata exchanges,category:basic"`
	CompressSignalIndexCache bool `json:"compress_signal_index_cache" yaml:"compress_signal_index_cache" schema:"type:bool,description:gzip-compress signal-index cache payloads,category:basic"`
	CompressPayloadData      bool `json:"compress_payload_data" yaml:"compress_payload_data" schema:"type:bool,description:Enable TSSC compression on the data channel,category:basic"`
	UseCommonSerialization   bool `json:"use_common_serialization" yaml:"use_common_serialization" schema:"type:bool,description:Use the cross-implementation common metadata serialization,category:advanced"`
	ReceiveExternalMetadata  bool `json:"receive_external_metadata" yaml:"receive_external_metadata" schema:"type:bool,description:Request metadata for signals originating from other sources,category:advanced"`
}

// SubscriberConfig is the subscriber engine's full configuration record
// (spec.md §6).
type SubscriberConfig struct {
	ConnectionString         string                 `json:"connection_string" yaml:"connection_string" schema:"required,type:string,description:server=host:port connection string,category:basic"`
	OperationalModes         OperationalModesConfig `json:"operational_modes" yaml:"operational_modes" schema:"type:object,description:Negotiated connection modes,category:basic"`
	UseMillisecondResolution bool                   `json:"use_millisecond_resolution" yaml:"use_millisecond_resolution" schema:"type:bool,description:Compact time offsets are in milliseconds instead of 100ns ticks,category:advanced"`
	KeepaliveTimeoutSec      uint32                 `json:"keepalive_timeout_sec" yaml:"keepalive_timeout_sec" schema:"type:int,description:Seconds without a frame before the connection is considered dead,category:advanced,default:30,min:1"`
	MaxPacketSize            uint32                 `json:"max_packet_size" yaml:"max_packet_size" schema:"type:int,description:Largest frame accepted before treating the connection as protocol-violating,category:advanced,default:1572864"`
	AutoReconnect            bool                   `json:"auto_reconnect" yaml:"auto_reconnect" schema:"type:bool,description:Automatically reconnect with exponential backoff on disconnect,category:basic,default:true"`
	ReconnectBackoff         ReconnectBackoff        `json:"reconnect_backoff" yaml:"reconnect_backoff" schema:"type:object,description:Reconnect backoff tuning,category:advanced"`
	UDPDataChannel           *UDPDataChannel         `json:"udp_data_channel,omitempty" yaml:"udp_data_channel,omitempty" schema:"type:object,description:Optional unreliable UDP data channel,category:advanced"`
	TLS                      security.ClientTLSConfig `json:"tls" yaml:"tls" schema:"type:object,description:Command-channel TLS configuration,category:advanced"`
	NATSBridge               NATSBridgeConfig       `json:"nats_bridge" yaml:"nats_bridge" schema:"type:object,description:Optional observability bridge,category:advanced"`
	Ops                      OpsConfig              `json:"ops" yaml:"ops" schema:"type:object,description:Optional HTTP/WS ops surface,category:advanced"`
	QueueCapacity            int                    `json:"queue_capacity" yaml:"queue_capacity" schema:"type:int,description:Inbound measurement queue capacity,category:advanced,default:10000,min:1"`
}

// DefaultSubscriberConfig returns a SubscriberConfig populated with
// spec.md's stated defaults.
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		KeepaliveTimeoutSec: 30,
		MaxPacketSize:       1_572_864,
		AutoReconnect:       true,
		ReconnectBackoff:    DefaultReconnectBackoff(),
		NATSBridge:          NATSBridgeConfig{SubjectPrefix: "sttp.events"},
		Ops:                 OpsConfig{ListenAddress: ":8080"},
		QueueCapacity:       10_000,
	}
}

// KeepaliveTimeout returns KeepaliveTimeoutSec as a time.Duration.
func (c SubscriberConfig) KeepaliveTimeout() time.Duration {
	return time.Duration(c.KeepaliveTimeoutSec) * time.Second
}

// PublisherConfig is the publisher engine's full configuration record
// (spec.md §6, §4.8).
type PublisherConfig struct {
	ListenAddress       string          `json:"listen_address" yaml:"listen_address" schema:"required,type:string,description:TCP address to listen on for the command channel,category:basic,default::7165"`
	MaxPacketSize       uint32          `json:"max_packet_size" yaml:"max_packet_size" schema:"type:int,description:Largest frame accepted before treating the connection as protocol-violating,category:advanced,default:1572864"`
	KeepaliveTimeoutSec uint32          `json:"keepalive_timeout_sec" yaml:"keepalive_timeout_sec" schema:"type:int,description:Seconds without a frame before a connection is considered dead,category:advanced,default:30,min:1"`
	PublishIntervalMs   int             `json:"publish_interval_ms" yaml:"publish_interval_ms" schema:"type:int,description:Maximum batching delay before a per-connection flush (T_publish),category:advanced,default:33,min:1"`
	MaxBatchBytes       int             `json:"max_batch_bytes" yaml:"max_batch_bytes" schema:"type:int,description:Maximum accumulated batch size before a per-connection flush,category:advanced,default:65536,min:1"`
	RoutingWorkers      int             `json:"routing_workers" yaml:"routing_workers" schema:"type:int,description:Worker pool size for per-subscriber routing fan-out,category:advanced,default:0"`
	OutboundQueueSize   int             `json:"outbound_queue_size" yaml:"outbound_queue_size" schema:"type:int,description:Per-connection outbound queue capacity,category:advanced,default:1000,min:1"`
	StallTimeoutSec     uint32          `json:"stall_timeout_sec" yaml:"stall_timeout_sec" schema:"type:int,description:Seconds an outbound queue may stay full before the connection is closed,category:advanced,default:5,min:1"`
	CipherRotationTimeoutSec uint32     `json:"cipher_rotation_timeout_sec" yaml:"cipher_rotation_timeout_sec" schema:"type:int,description:Seconds to wait for a RotateCipherKeys acknowledgment,category:advanced,default:5,min:1"`
	UDPDataChannel      *UDPDataChannel `json:"udp_data_channel,omitempty" yaml:"udp_data_channel,omitempty" schema:"type:object,description:Optional unreliable UDP data channel,category:advanced"`
	TLS                 security.ServerTLSConfig `json:"tls" yaml:"tls" schema:"type:object,description:Command-channel listener TLS configuration,category:advanced"`
	NATSBridge          NATSBridgeConfig `json:"nats_bridge" yaml:"nats_bridge" schema:"type:object,description:Optional observability bridge,category:advanced"`
	Ops                 OpsConfig       `json:"ops" yaml:"ops" schema:"type:object,description:Optional HTTP/WS ops surface,category:advanced"`
}

// DefaultPublisherConfig returns a PublisherConfig populated with
// spec.md's stated defaults.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		ListenAddress:            ":7165",
		MaxPacketSize:            1_572_864,
		KeepaliveTimeoutSec:      30,
		PublishIntervalMs:        33,
		MaxBatchBytes:            65536,
		OutboundQueueSize:        1000,
		StallTimeoutSec:          5,
		CipherRotationTimeoutSec: 5,
		NATSBridge:               NATSBridgeConfig{SubjectPrefix: "sttp.events"},
		Ops:                      OpsConfig{ListenAddress: ":8080"},
	}
}

// KeepaliveTimeout returns KeepaliveTimeoutSec as a time.Duration.
func (c PublisherConfig) KeepaliveTimeout() time.Duration {
	return time.Duration(c.KeepaliveTimeoutSec) * time.Second
}

// PublishInterval returns PublishIntervalMs as a time.Duration.
func (c PublisherConfig) PublishInterval() time.Duration {
	return time.Duration(c.PublishIntervalMs) * time.Millisecond
}

// StallTimeout returns StallTimeoutSec as a time.Duration.
func (c PublisherConfig) StallTimeout() time.Duration {
	return time.Duration(c.StallTimeoutSec) * time.Second
}

// CipherRotationTimeout returns CipherRotationTimeoutSec as a time.Duration.
func (c PublisherConfig) CipherRotationTimeout() time.Duration {
	return time.Duration(c.CipherRotationTimeoutSec) * time.Second
}
