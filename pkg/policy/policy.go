package policy

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const query = "data.tool"

// Input is evaluated by the policy for every requested tool call
type Input struct {
	Tool   string   `json:"tool"`
	Round  int      `json:"round"`
	Called []string `json:"called"`
	UserID string   `json:"user_id"`
}

type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Engine evaluates the package "tool". Every message in its "deny" set
// rejects the call.
type Engine struct {
	query *rego.PreparedEvalQuery
}

// New loads *.rego from policyDir. With no policy files the engine allows
// every call.
func New(ctx context.Context, policyDir string) (*Engine, error) {
	modules, err := loadModules(policyDir)
	if err != nil {
		return nil, err
	}
	return newEngine(ctx, modules)
}

// NewFromSource builds an engine from in-memory modules keyed by file name
func NewFromSource(ctx context.Context, sources map[string]string) (*Engine, error) {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	modules := make([]func(*rego.Rego), 0, len(sources))
	for _, name := range names {
		modules = append(modules, rego.Module(name, sources[name]))
	}
	return newEngine(ctx, modules)
}

func newEngine(ctx context.Context, modules []func(*rego.Rego)) (*Engine, error) {
	if len(modules) == 0 {
		return &Engine{}, nil
	}

	q, err := prepareQuery(ctx, modules, query)
	if err != nil {
		return nil, err
	}
	return &Engine{query: q}, nil
}

// Check returns the deny messages for the call; empty means allowed
func (e *Engine) Check(ctx context.Context, input Input) ([]string, error) {
	if e == nil || e.query == nil {
		return nil, nil
	}
	if input.Called == nil {
		input.Called = []string{}
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate tool policy", goerr.V("tool", input.Tool))
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, nil
	}
	raw, ok := data["deny"]
	if !ok {
		return nil, nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, goerr.New("invalid policy result: deny is not a set", goerr.V("deny", raw))
	}

	msgs := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			msgs = append(msgs, s)
		}
	}
	sort.Strings(msgs)
	return msgs, nil
}
