package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/memory"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func memoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Inspect or clear the memories of a user",
		Commands: []*cli.Command{
			memoryListCommand(),
			memoryClearCommand(),
		},
	}
}

func userIDFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "user-id",
		Aliases:     []string{"u"},
		Usage:       "User ID owning the memories",
		Sources:     cli.EnvVars("SRIBOT_USER_ID"),
		Destination: dst,
		Required:    true,
	}
}

// newMemoryService opens the memory store without an LLM. Listing and
// clearing never embed, so the hash embedder only fills the slot.
func (cfg *config) newMemoryService(ctx context.Context) (*memory.Service, func(), error) {
	repo, err := cfg.newMemoryRepository(ctx)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := repo.Close(); err != nil {
			logging.From(ctx).Warn("failed to close memory store", logging.ErrAttr(err))
		}
	}
	return memory.New(repo, memory.NewHashEmbedder(int(cfg.embeddingDim))), closer, nil
}

func memoryListCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{userIDFlag(&userID)}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, embeddingDimFlag(&cfg))

	return &cli.Command{
		Name:  "list",
		Usage: "List the memories of a user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.initLogger(ctx)

			svc, closer, err := cfg.newMemoryService(ctx)
			if err != nil {
				return err
			}
			defer closer()

			memories, err := svc.ListAll(ctx, model.NewNamespace(userID))
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if len(memories) == 0 {
				fmt.Fprintf(w, "No memories for %s\n", userID)
				return nil
			}
			for _, m := range memories {
				fmt.Fprintf(w, "%s  %s  %s\n", m.ID, m.CreatedAt.Format(time.RFC3339), m.Text)
			}
			return nil
		},
	}
}

func memoryClearCommand() *cli.Command {
	var (
		cfg    config
		userID string
		yes    bool
	)

	flags := []cli.Flag{
		userIDFlag(&userID),
		&cli.BoolFlag{
			Name:        "yes",
			Aliases:     []string{"y"},
			Usage:       "Confirm deletion",
			Destination: &yes,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, embeddingDimFlag(&cfg))

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every memory of a user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.initLogger(ctx)
			if !yes {
				return goerr.New("refusing to clear memories without --yes", goerr.V("user_id", userID))
			}

			svc, closer, err := cfg.newMemoryService(ctx)
			if err != nil {
				return err
			}
			defer closer()

			n, err := svc.ClearNamespace(ctx, model.NewNamespace(userID))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Deleted %d memories of %s\n", n, userID)
			return nil
		},
	}
}
