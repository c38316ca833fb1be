package mcp

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
)

// inputSchema decodes the schema advertised by an MCP server. The SDK
// exposes it as an untyped value, so it goes through JSON.
func inputSchema(raw any) (*jsonschema.Schema, error) {
	if raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal input schema")
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal input schema")
	}
	if schema.Type == "" && len(schema.Properties) > 0 {
		schema.Type = "object"
	}
	return &schema, nil
}
