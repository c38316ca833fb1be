package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/docindex"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func ingestCommand() *cli.Command {
	var (
		cfg       config
		chunkSize int64
		overlap   int64
		reset     bool
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "chunk-size",
			Usage:       "Chunk size in characters",
			Value:       docindex.DefaultChunkSize,
			Destination: &chunkSize,
		},
		&cli.IntFlag{
			Name:        "chunk-overlap",
			Usage:       "Characters shared by consecutive chunks",
			Value:       docindex.DefaultChunkOverlap,
			Destination: &overlap,
		},
		&cli.BoolFlag{
			Name:        "reset",
			Usage:       "Drop the existing index before ingesting",
			Destination: &reset,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, documentFlags(&cfg)...)

	return &cli.Command{
		Name:      "ingest",
		Usage:     "Index text or markdown documents for search_documents",
		ArgsUsage: "<file>...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.initLogger(ctx)

			files := c.Args().Slice()
			if len(files) == 0 {
				return goerr.New("at least one file is required")
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			embedder, release, err := cfg.newEmbedder(gemini)
			if err != nil {
				return err
			}
			defer release()

			index, err := cfg.newDocumentIndex(embedder)
			if err != nil {
				return err
			}
			if reset {
				if err := index.Reset(); err != nil {
					return err
				}
			}

			logger := logging.From(ctx)
			total := 0
			for _, path := range files {
				n, err := index.IngestFile(ctx, path, int(chunkSize), int(overlap))
				if err != nil {
					return err
				}
				logger.Info("document indexed", "path", path, "chunks", n)
				total += n
			}

			fmt.Fprintf(c.Root().Writer, "Indexed %d chunks from %d files (%d chunks in index)\n", total, len(files), index.Count())
			return nil
		},
	}
}
