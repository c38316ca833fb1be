package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/genai"
)

var (
	ErrToolNotFound   = goerr.New("tool not found")
	ErrDuplicatedTool = goerr.New("duplicated tool name")
)

const (
	resultOK      = "ok"
	resultInvalid = "invalid"
	resultError   = "error"
)

type entry struct {
	tool     Tool
	spec     *Spec
	resolved *jsonschema.Resolved
}

// Registry manages available tools for the LLM and dispatches function calls
type Registry struct {
	entries  map[string]*entry
	allTools []Tool
	decls    []*genai.FunctionDeclaration
	calls    *prometheus.CounterVec
}

// Option is a functional option for Registry
type Option func(*Registry)

// WithCallCounter counts every dispatch with labels "tool" and "result"
func WithCallCounter(c *prometheus.CounterVec) Option {
	return func(r *Registry) {
		r.calls = c
	}
}

// New creates a tool registry. Function names must be unique across tools.
func New(tools []Tool, opts ...Option) (*Registry, error) {
	r := &Registry{
		entries:  make(map[string]*entry),
		allTools: tools,
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, t := range tools {
		for _, spec := range t.Specs() {
			if _, ok := r.entries[spec.Name]; ok {
				return nil, goerr.Wrap(ErrDuplicatedTool, "tool name conflict", goerr.V("name", spec.Name))
			}

			params := spec.Parameters
			if params == nil {
				params = Object(nil)
			}
			resolved, err := params.Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
			if err != nil {
				return nil, goerr.Wrap(err, "invalid tool schema", goerr.V("name", spec.Name))
			}

			schema, err := ToGenaiSchema(params)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert tool schema", goerr.V("name", spec.Name))
			}

			r.entries[spec.Name] = &entry{tool: t, spec: spec, resolved: resolved}
			r.decls = append(r.decls, &genai.FunctionDeclaration{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  schema,
			})
		}
	}

	return r, nil
}

// Specs returns the tool specifications for Gemini function calling
func (r *Registry) Specs() []*genai.Tool {
	if len(r.decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: r.decls}}
}

// Names returns the registered function names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.decls))
	for i, d := range r.decls {
		names[i] = d.Name
	}
	return names
}

// Lookup returns the spec of a registered function
func (r *Registry) Lookup(name string) (*Spec, bool) {
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.spec, true
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.allTools {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Execute runs the function call. Every failure is reported inside the
// response as {"error": ...} so the model can read it and retry.
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall) *genai.FunctionResponse {
	output, result, err := r.run(ctx, fc)
	if r.calls != nil {
		r.calls.WithLabelValues(fc.Name, result).Inc()
	}

	if err != nil {
		logging.From(ctx).Warn("tool call failed", "tool", fc.Name, logging.ErrAttr(err))
		return ErrorResponse(fc, err.Error())
	}

	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: map[string]any{"output": output},
	}
}

// ErrorResponse builds the response carrying a message for a rejected call
func ErrorResponse(fc genai.FunctionCall, msg string) *genai.FunctionResponse {
	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: map[string]any{"error": msg},
	}
}

func (r *Registry) run(ctx context.Context, fc genai.FunctionCall) (output string, result string, err error) {
	e, ok := r.entries[fc.Name]
	if !ok {
		return "", resultInvalid, goerr.Wrap(ErrToolNotFound, "unknown tool: "+fc.Name, goerr.V("name", fc.Name))
	}

	args := make(map[string]any, len(fc.Args))
	for k, v := range fc.Args {
		args[k] = v
	}

	if err := e.resolved.ApplyDefaults(&args); err != nil {
		return "", resultInvalid, goerr.New("invalid arguments: "+err.Error(), goerr.V("name", fc.Name))
	}
	if err := e.resolved.Validate(args); err != nil {
		return "", resultInvalid, goerr.New("invalid arguments: "+err.Error(), goerr.V("name", fc.Name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			logging.From(ctx).Error("tool panicked", "tool", fc.Name, "panic", rec, "stack", string(debug.Stack()))
			output, result, err = "", resultError, goerr.New(fmt.Sprintf("tool %s failed unexpectedly", fc.Name))
		}
	}()

	v, err := e.tool.Run(ctx, fc.Name, args)
	if err != nil {
		return "", resultError, err
	}

	output, err = stringify(v)
	if err != nil {
		return "", resultError, err
	}
	return output, resultOK, nil
}

func stringify(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case nil:
		return "", nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode tool result")
	}
	return string(raw), nil
}
