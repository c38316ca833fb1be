package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/sribot/pkg/server"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, serverFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, documentFlags(&cfg)...)
	flags = append(flags, catalogFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, agentFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.initLogger(ctx)
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics := server.NewMetrics()
			rt, err := cfg.newRuntime(ctx, metrics.ToolCalls())
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					logging.From(ctx).Warn("failed to close resources", logging.ErrAttr(err))
				}
			}()

			srv := server.New(rt.agent, rt.catalog, rt.storage,
				server.WithBaseURL(cfg.baseURL),
				server.WithMetrics(metrics),
				server.WithMemories(rt.memories),
				server.WithMaxUploadSize(cfg.maxUploadSize),
			)

			logging.From(ctx).Info("starting server",
				"addr", cfg.addr,
				"tools", rt.registry.Names(),
			)
			return srv.Serve(ctx, cfg.addr)
		},
	}
}
