package cli

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Code: 1, Message: err.Error()}
	}

	cmd := &cli.Command{
		Name:  "sribot",
		Usage: "Songket assistant for UMKM producers and buyers",
		Commands: []*cli.Command{
			serveCommand(),
			chatCommand(),
			ingestCommand(),
			memoryCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
