// Package tool implements the callable-capability subsystem: a registry of
// named tools with parameter schemas, a caller that validates arguments and
// executes tools under per-call timeouts, and a bounded call history.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Handler is the bound callable a descriptor exposes. Parameters arrive
// already validated against the descriptor's schema, with defaults applied.
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	// Type is the JSON-schema type: "string", "number", "integer",
	// "boolean", "array", or "object".
	Type string `json:"type"`

	// Description is shown to models and operators.
	Description string `json:"description,omitempty"`

	// Required marks the parameter as mandatory.
	Required bool `json:"required,omitempty"`

	// Default is applied when an optional parameter is absent.
	Default interface{} `json:"default,omitempty"`

	// Enum restricts the accepted values when non-empty.
	Enum []interface{} `json:"enum,omitempty"`
}

// Descriptor declares a callable tool: its unique name, parameter schema,
// category, and bound handler.
//
// Example:
//
//	desc := &tool.Descriptor{
//		Name:        "get_weather",
//		Description: "Look up the current weather for a city",
//		Category:    "information",
//		Parameters: map[string]tool.ParamSpec{
//			"city": {Type: "string", Required: true},
//		},
//		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
//			return lookup(params["city"].(string))
//		},
//	}
type Descriptor struct {
	// Name uniquely identifies the tool (snake_case).
	Name string `json:"name"`

	// Description tells callers and models what the tool does.
	Description string `json:"description"`

	// Category groups related tools ("information", "action", ...).
	Category string `json:"category,omitempty"`

	// Parameters maps parameter names to their specs.
	Parameters map[string]ParamSpec `json:"parameters,omitempty"`

	// Handler is the bound async callable (required).
	Handler Handler `json:"-"`

	// schema is the compiled parameter schema, built at registration.
	schema *jsonschema.Schema
}

// compileSchema builds and compiles the JSON schema for the descriptor's
// parameters. Called once at registration so schema defects surface at
// startup, not at call time.
func (d *Descriptor) compileSchema() error {
	doc := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
	}

	properties := make(map[string]interface{}, len(d.Parameters))
	var required []string
	for name, spec := range d.Parameters {
		prop := map[string]interface{}{"type": spec.Type}
		if len(spec.Enum) > 0 {
			prop["enum"] = spec.Enum
		}
		properties[name] = prop
		if spec.Required {
			required = append(required, name)
		}
	}
	doc["properties"] = properties
	if len(required) > 0 {
		sort.Strings(required)
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal schema for %s: %w", d.Name, err)
	}

	resource := d.Name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, strings.NewReader(string(raw))); err != nil {
		return fmt.Errorf("add schema resource for %s: %w", d.Name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", d.Name, err)
	}

	d.schema = schema
	return nil
}

// validate checks params against the compiled schema after applying
// defaults. It returns the effective parameter map and a *ValidationError on
// mismatch.
func (d *Descriptor) validate(params map[string]interface{}) (map[string]interface{}, error) {
	effective := make(map[string]interface{}, len(params))
	for k, v := range params {
		effective[k] = v
	}
	for name, spec := range d.Parameters {
		if _, present := effective[name]; !present && !spec.Required && spec.Default != nil {
			effective[name] = spec.Default
		}
	}

	if d.schema != nil {
		// Round-trip through JSON so Go-native values (int, structs) become
		// the JSON types the validator expects.
		raw, err := json.Marshal(effective)
		if err != nil {
			return nil, &ValidationError{Tool: d.Name, Reason: err.Error()}
		}
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, &ValidationError{Tool: d.Name, Reason: err.Error()}
		}
		if err := d.schema.Validate(decoded); err != nil {
			return nil, &ValidationError{Tool: d.Name, Reason: err.Error()}
		}
	}

	return effective, nil
}
