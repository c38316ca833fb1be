package docindex

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/model"
)

// IngestFile splits a text or markdown file and indexes its chunks. The
// doc_type is the file name without extension and page is the chunk number
// starting at 1. Returns the number of indexed chunks.
func (ix *Index) IngestFile(ctx context.Context, path string, size, overlap int) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read document", goerr.V("path", path))
	}

	base := filepath.Base(path)
	docType := strings.TrimSuffix(base, filepath.Ext(base))

	parts := Split(string(raw), size, overlap)
	chunks := make([]*model.DocumentChunk, len(parts))
	for i, part := range parts {
		chunks[i] = &model.DocumentChunk{
			ID:      chunkID(base, i+1),
			Content: part,
			DocType: docType,
			Source:  path,
			Page:    strconv.Itoa(i + 1),
		}
	}

	if err := ix.Add(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
