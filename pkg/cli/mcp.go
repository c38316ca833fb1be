package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/service/mcp"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{userIDFlag(&userID)}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, documentFlags(&cfg)...)
	flags = append(flags, catalogFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, serverFlags(&cfg)...)
	flags = append(flags, agentFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the tools over MCP stdio on behalf of one user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.initLogger(ctx)

			rt, err := cfg.newRuntime(ctx, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					logging.From(ctx).Warn("failed to close resources", logging.ErrAttr(err))
				}
			}()

			server, err := mcp.NewServer(rt.registry, userID)
			if err != nil {
				return err
			}

			logging.From(ctx).Info("serving MCP over stdio", "user_id", userID, "tools", rt.registry.Names())
			if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
				return goerr.Wrap(err, "MCP server stopped")
			}
			return nil
		},
	}
}
