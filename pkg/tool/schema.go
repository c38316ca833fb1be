package tool

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Object builds an object schema
func Object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// String builds a string schema. minLength is applied when positive.
func String(description string, minLength int) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "string", Description: description}
	if minLength > 0 {
		s.MinLength = &minLength
	}
	return s
}

// IntegerOption configures an integer schema
type IntegerOption func(*jsonschema.Schema)

func Min(v float64) IntegerOption {
	return func(s *jsonschema.Schema) { s.Minimum = &v }
}

func Max(v float64) IntegerOption {
	return func(s *jsonschema.Schema) { s.Maximum = &v }
}

func Default(v int) IntegerOption {
	return func(s *jsonschema.Schema) {
		raw, _ := json.Marshal(v)
		s.Default = raw
	}
}

// Integer builds an integer schema
func Integer(description string, opts ...IntegerOption) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "integer", Description: description}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ToGenaiSchema converts JSON Schema to Gemini genai.Schema
func ToGenaiSchema(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	out := &genai.Schema{
		Description: schema.Description,
		Minimum:     schema.Minimum,
		Maximum:     schema.Maximum,
		Required:    schema.Required,
	}

	switch schema.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		if schema.Type != "" {
			return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
		}
	}

	if schema.MinLength != nil {
		v := int64(*schema.MinLength)
		out.MinLength = &v
	}
	if schema.MaxLength != nil {
		v := int64(*schema.MaxLength)
		out.MaxLength = &v
	}

	if len(schema.Default) > 0 {
		var v any
		if err := json.Unmarshal(schema.Default, &v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode default value")
		}
		out.Default = v
	}

	if len(schema.Enum) > 0 {
		out.Enum = make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			if s, ok := v.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}

	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			converted, err := ToGenaiSchema(prop)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema", goerr.V("property", name))
			}
			out.Properties[name] = converted
		}
	}

	if schema.Items != nil {
		converted, err := ToGenaiSchema(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		out.Items = converted
	}

	return out, nil
}
