// Package component defines the Discoverable interface and related types
// through which a component can report its identity, configuration
// schema, health, and data-flow rate in a uniform way. The publisher and
// subscriber engines, the observability bridge and the ops surface do not
// implement Discoverable; the package is used for config schema
// generation and for health-status conversion.
package component

import (
	"time"
)

// Discoverable defines the interface for components that can be discovered
// and inspected by operators or the ops HTTP surface.
type Discoverable interface {
	// Meta returns basic component information
	Meta() Metadata

	// ConfigSchema returns the configuration schema for this component
	ConfigSchema() ConfigSchema

	// Health returns current health status
	Health() HealthStatus

	// DataFlow returns current data flow metrics
	DataFlow() FlowMetrics
}

// Metadata describes what a component is
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "publisher", "subscriber", "bridge", "ops"
	Description string `json:"description"`
	Version     string `json:"version"`
}

// ConfigSchema describes the configuration parameters for a component
type ConfigSchema struct {
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes a single configuration property
type PropertySchema struct {
	Type        string   `json:"type"` // "string", "int", "bool", "float", "enum", "array", "object"
	Description string   `json:"description"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`     // Valid string values
	Minimum     *int     `json:"minimum,omitempty"`  // For numeric types
	Maximum     *int     `json:"maximum,omitempty"`  // For numeric types
	Category    string   `json:"category,omitempty"` // "basic" or "advanced" for UI organization
}

// HealthStatus describes the current health state of a component
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics describes the current data flow through a component
type FlowMetrics struct {
	MessagesPerSecond float64   `json:"messages_per_second"`
	BytesPerSecond    float64   `json:"bytes_per_second"`
	ErrorRate         float64   `json:"error_rate"`
	LastActivity      time.Time `json:"last_activity"`
}
