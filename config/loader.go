package config

import (
	"fmt"
	"os"
	"reflect"

	"github.com/c360/sttp/errors"
	"gopkg.in/yaml.v3"
)

var (
	publisherSchema  *Schema
	subscriberSchema *Schema
)

func init() {
	var err error
	if publisherSchema, err = NewSchema(reflect.TypeOf(PublisherConfig{})); err != nil {
		panic(fmt.Sprintf("config: build publisher schema: %v", err))
	}
	if subscriberSchema, err = NewSchema(reflect.TypeOf(SubscriberConfig{})); err != nil {
		panic(fmt.Sprintf("config: build subscriber schema: %v", err))
	}
}

// LoadPublisherConfig reads a YAML file, validates it against the
// PublisherConfig schema, and decodes it on top of DefaultPublisherConfig
// so unset fields keep their defaults.
func LoadPublisherConfig(path string) (PublisherConfig, error) {
	cfg := DefaultPublisherConfig()
	raw, err := readAndValidate(path, publisherSchema)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.WrapInvalid(err, "config", "LoadPublisherConfig", "decode yaml")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadSubscriberConfig reads a YAML file, validates it against the
// SubscriberConfig schema, and decodes it on top of DefaultSubscriberConfig
// so unset fields keep their defaults.
func LoadSubscriberConfig(path string) (SubscriberConfig, error) {
	cfg := DefaultSubscriberConfig()
	raw, err := readAndValidate(path, subscriberSchema)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.WrapInvalid(err, "config", "LoadSubscriberConfig", "decode yaml")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readAndValidate(path string, schema *Schema) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "readAndValidate", "read file")
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.WrapInvalid(err, "config", "readAndValidate", "parse yaml for validation")
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := schema.Validate(normalizeYAML(doc).(map[string]any)); err != nil {
		return nil, err
	}
	return raw, nil
}

// normalizeYAML recursively converts map[string]interface{} subtrees
// (and any stray map[interface{}]interface{} a looser decoder might
// produce) into the map[string]any shape gojsonschema's Go loader
// expects.
func normalizeYAML(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

// Validate checks cross-field invariants that the JSON Schema pass
// cannot express (spec.md §6).
func (c PublisherConfig) Validate() error {
	if c.ListenAddress == "" {
		return errors.WrapInvalid(fmt.Errorf("listen_address is required"), "config", "PublisherConfig.Validate", "required field")
	}
	if c.PublishIntervalMs <= 0 {
		return errors.WrapInvalid(fmt.Errorf("publish_interval_ms must be positive"), "config", "PublisherConfig.Validate", "range check")
	}
	if c.UDPDataChannel != nil && c.UDPDataChannel.Port == 0 {
		return errors.WrapInvalid(fmt.Errorf("udp_data_channel.port must be nonzero when udp_data_channel is configured"), "config", "PublisherConfig.Validate", "range check")
	}
	return nil
}

// Validate checks cross-field invariants that the JSON Schema pass
// cannot express (spec.md §6).
func (c SubscriberConfig) Validate() error {
	if c.ConnectionString == "" {
		return errors.WrapInvalid(fmt.Errorf("connection_string is required"), "config", "SubscriberConfig.Validate", "required field")
	}
	if c.ReconnectBackoff.BaseMs <= 0 || c.ReconnectBackoff.CapMs < c.ReconnectBackoff.BaseMs {
		return errors.WrapInvalid(fmt.Errorf("reconnect_backoff.cap_ms must be >= base_ms > 0"), "config", "SubscriberConfig.Validate", "range check")
	}
	if c.UDPDataChannel != nil && c.UDPDataChannel.Port == 0 {
		return errors.WrapInvalid(fmt.Errorf("udp_data_channel.port must be nonzero when udp_data_channel is configured"), "config", "SubscriberConfig.Validate", "range check")
	}
	return nil
}
