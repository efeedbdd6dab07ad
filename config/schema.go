package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/c360/sttp/component"
	"github.com/c360/sttp/errors"
	"github.com/xeipuuv/gojsonschema"
)

// jsonSchemaType maps component's schema tag vocabulary onto the JSON
// Schema draft-07 type keyword.
func jsonSchemaType(t string) string {
	switch t {
	case "int":
		return "integer"
	case "float":
		return "number"
	case "bool":
		return "boolean"
	case "enum":
		return "string"
	default:
		return t // string, array, object already match
	}
}

// toJSONSchemaDocument adapts a component.ConfigSchema (built by
// component.GenerateConfigSchema from struct tags) into a draft-07 JSON
// Schema document that gojsonschema can compile. component already
// ships a lightweight ValidateConfig for in-process use; this adapter
// exists so configuration files get the same richer, standards-based
// validation (formats, additionalProperties, nested schema composition)
// the teacher's other HTTP-facing packages get from gojsonschema.
func toJSONSchemaDocument(cs component.ConfigSchema) []byte {
	properties := make(map[string]any, len(cs.Properties))
	for name, prop := range cs.Properties {
		entry := map[string]any{
			"type":        jsonSchemaType(prop.Type),
			"description": prop.Description,
		}
		if len(prop.Enum) > 0 {
			entry["enum"] = prop.Enum
		}
		if prop.Minimum != nil {
			entry["minimum"] = *prop.Minimum
		}
		if prop.Maximum != nil {
			entry["maximum"] = *prop.Maximum
		}
		properties[name] = entry
	}

	doc := map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": true, // lenient: unknown fields pass, matching component.ValidateConfig
	}
	if len(cs.Required) > 0 {
		doc["required"] = cs.Required
	}

	// Encoding cannot fail: every value above is a plain map/slice/primitive.
	out, _ := json.Marshal(doc)
	return out
}

// Schema validates a decoded configuration document (as produced by
// yaml.Unmarshal into a map[string]any) against a JSON Schema generated
// from a config struct's `schema` tags.
type Schema struct {
	raw *gojsonschema.Schema
}

// NewSchema builds a Schema from any struct type carrying `schema` tags,
// e.g. NewSchema(reflect.TypeOf(PublisherConfig{})).
func NewSchema(t reflect.Type) (*Schema, error) {
	cs := component.GenerateConfigSchema(t)
	doc := toJSONSchemaDocument(cs)

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "NewSchema", "compile json schema")
	}
	return &Schema{raw: compiled}, nil
}

// Validate checks doc (typically produced by normalizing a yaml.Unmarshal
// result into map[string]any) against the schema and returns a combined
// error describing every violation found.
func (s *Schema) Validate(doc map[string]any) error {
	result, err := s.raw.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.WrapInvalid(err, "config", "Schema.Validate", "evaluate schema")
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.WrapInvalid(
		fmt.Errorf("configuration invalid: %s", strings.Join(msgs, "; ")),
		"config", "Schema.Validate", "schema violations",
	)
}
