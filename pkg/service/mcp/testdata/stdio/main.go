package main

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type motifParams struct {
	Name string `json:"name" jsonschema:"Motif name"`
}

var motifs = map[string]string{
	"lepus":       "Motif Lepus: benang emas menutupi hampir seluruh kain.",
	"bungo pacik": "Motif Bungo Pacik: bunga kecil tersebar dengan benang perak.",
}

func describeMotif(ctx context.Context, req *mcp.CallToolRequest, params *motifParams) (*mcp.CallToolResult, any, error) {
	text, ok := motifs[params.Name]
	if !ok {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "unknown motif: " + params.Name}},
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "motif-stdio-server",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "describe_motif",
		Description: "Describe a songket motif",
	}, describeMotif)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
