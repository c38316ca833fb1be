package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/tool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Provider exposes the tools of connected MCP servers as a tool.Tool
type Provider struct {
	client *Client
	tools  map[string]*remoteTool
	specs  []*tool.Spec
}

type remoteTool struct {
	serverName string
	name       string
}

// NewProvider collects the tools of every connected server
func NewProvider(client *Client) (*Provider, error) {
	p := &Provider{
		client: client,
		tools:  make(map[string]*remoteTool),
	}

	for _, serverName := range client.Servers() {
		tools, err := client.Tools(serverName)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get tools from server", goerr.V("server", serverName))
		}

		for _, t := range tools {
			if _, dup := p.tools[t.Name]; dup {
				return nil, goerr.New("MCP tool name is used by more than one server",
					goerr.V("server", serverName),
					goerr.V("tool", t.Name))
			}

			params, err := inputSchema(t.InputSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert tool schema",
					goerr.V("server", serverName),
					goerr.V("tool", t.Name))
			}

			p.tools[t.Name] = &remoteTool{serverName: serverName, name: t.Name}
			p.specs = append(p.specs, &tool.Spec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			})
		}
	}

	return p, nil
}

func (p *Provider) Specs() []*tool.Spec {
	return p.specs
}

func (p *Provider) Prompt(ctx context.Context) string {
	if len(p.specs) == 0 {
		return ""
	}
	return "Tool MCP tambahan tersedia dari server eksternal. Gunakan hanya jika tool bawaan tidak mencukupi."
}

// Run calls the remote tool and returns its text content. A result flagged
// as an error by the server becomes an error.
func (p *Provider) Run(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := p.tools[name]
	if !ok {
		return nil, goerr.Wrap(tool.ErrToolNotFound, "MCP tool not found", goerr.V("name", name))
	}

	result, err := p.client.CallTool(ctx, t.serverName, t.name, args)
	if err != nil {
		return nil, err
	}

	text, err := resultText(result)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, goerr.New("MCP tool returned an error: "+text,
			goerr.V("server", t.serverName),
			goerr.V("tool", t.name))
	}
	return text, nil
}

// resultText joins text contents; other content is encoded as JSON
func resultText(result *mcp.CallToolResult) (string, error) {
	if result.StructuredContent != nil && len(result.Content) == 0 {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return "", goerr.Wrap(err, "failed to marshal structured content")
		}
		return string(data), nil
	}

	texts := make([]string, 0, len(result.Content))
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
			continue
		}
		data, err := json.Marshal(c)
		if err != nil {
			return "", goerr.Wrap(err, "failed to marshal MCP content")
		}
		texts = append(texts, string(data))
	}
	return strings.Join(texts, "\n"), nil
}

// Close disconnects from all servers
func (p *Provider) Close() error {
	return p.client.Close()
}
