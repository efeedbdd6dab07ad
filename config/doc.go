// Package config implements the publisher and subscriber configuration
// records of spec.md §6: operational modes, keepalive/backoff tuning,
// UDP data channel, TLS, and the optional observability bridge and ops
// surface. Configuration is loaded from YAML (gopkg.in/yaml.v3) and
// validated against a JSON Schema generated from struct tags, mirroring
// the teacher's component.GenerateConfigSchema pattern.
package config
