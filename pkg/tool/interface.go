package tool

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Spec declares one callable function of a Tool
type Spec struct {
	Name        string
	Description string

	// Parameters must be an object schema; nil means no arguments
	Parameters *jsonschema.Schema
}

// Tool is a set of functions the model can call
type Tool interface {
	// Specs returns the functions provided by the tool
	Specs() []*Spec

	// Run executes the named function with validated arguments. A string
	// result is passed to the model as is; anything else is encoded as JSON.
	Run(ctx context.Context, name string, args map[string]any) (any, error)

	// Prompt returns additional information to be added to the system prompt
	// Returns empty string if no additional prompt is needed
	Prompt(ctx context.Context) string
}
