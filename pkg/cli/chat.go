package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/usecase/chat"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg      config
		userID   string
		threadID string
		message  string
		showData bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User ID owning memories and the conversation",
			Value:       "cli",
			Sources:     cli.EnvVars("SRIBOT_USER_ID"),
			Destination: &userID,
		},
		&cli.StringFlag{
			Name:        "thread-id",
			Aliases:     []string{"t"},
			Usage:       "Conversation thread ID (defaults to the user ID)",
			Sources:     cli.EnvVars("SRIBOT_THREAD_ID"),
			Destination: &threadID,
		},
		&cli.StringFlag{
			Name:        "message",
			Aliases:     []string{"m"},
			Usage:       "Send a single message and exit",
			Destination: &message,
		},
		&cli.BoolFlag{
			Name:        "data",
			Usage:       "Print structured data of each reply",
			Destination: &showData,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, documentFlags(&cfg)...)
	flags = append(flags, catalogFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, serverFlags(&cfg)...)
	flags = append(flags, agentFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the assistant from the terminal",
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

			w := c.Root().Writer
			send := func(text string) {
				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				sp.Suffix = " berpikir..."
				sp.Start()
				result := rt.agent.Chat(ctx, chat.ChatInput{
					ThreadID: threadID,
					UserID:   userID,
					Message:  text,
				})
				sp.Stop()
				printResult(w, result, showData)
			}

			if message != "" {
				send(message)
				return nil
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     historyFile(),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start readline")
			}
			defer rl.Close()

			fmt.Fprintf(w, "Chat session started as %q. Type 'exit' to quit.\n", userID)
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				line = strings.TrimSpace(line)
				if line == "exit" || line == "quit" {
					break
				}
				if line == "" {
					continue
				}
				send(line)
			}

			fmt.Fprintf(w, "\nChat session completed\n")
			return nil
		},
	}
}

func printResult(w io.Writer, result *model.ChatResult, showData bool) {
	fmt.Fprintf(w, "%s\n", result.Reply)
	for _, img := range result.Images {
		fmt.Fprintf(w, "  [gambar] %s\n", img)
	}
	if showData && result.Data != nil {
		raw, err := json.MarshalIndent(result.Data, "", "  ")
		if err == nil {
			fmt.Fprintf(w, "%s\n", raw)
		}
	}
	fmt.Fprintln(w)
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "sribot")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}
