package mcp

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/tool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genai"
)

// NewServer exposes every registry tool over MCP. All calls run as userID;
// MCP clients cannot choose the memory namespace.
func NewServer(registry *tool.Registry, userID string) (*mcp.Server, error) {
	if userID == "" {
		return nil, goerr.New("user id is required to serve tools over MCP")
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    implementationName,
		Version: implementationVersion,
	}, nil)

	for _, name := range registry.Names() {
		spec, _ := registry.Lookup(name)
		params := spec.Parameters
		if params == nil {
			params = tool.Object(nil)
		}

		server.AddTool(&mcp.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: params,
		}, handler(registry, spec.Name, userID))
	}

	return server, nil
}

func handler(registry *tool.Registry, name, userID string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult("invalid arguments: " + err.Error()), nil
			}
		}

		ctx = tool.WithUserID(ctx, userID)
		resp := registry.Execute(ctx, genai.FunctionCall{Name: name, Args: args})

		if msg, ok := resp.Response["error"].(string); ok {
			return errorResult(msg), nil
		}
		output, _ := resp.Response["output"].(string)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: output}},
		}, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
