package docindex

import (
	"context"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/memory"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/philippgille/chromem-go"
)

const (
	collectionName = "documents"

	metaDocType = "doc_type"
	metaSource  = "source"
	metaPage    = "page"
)

// Index is a semantic index of reference document chunks
type Index struct {
	db       *chromem.DB
	embedder memory.Embedder
	col      *chromem.Collection
}

// Open opens the index persisted under path. An empty path keeps the index
// in memory.
func Open(path string, embedder memory.Embedder) (*Index, error) {
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open document index", goerr.V("path", path))
		}
	}

	ix := &Index{db: db, embedder: embedder}
	if err := ix.open(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Index) open() error {
	col, err := ix.db.GetOrCreateCollection(collectionName, nil, ix.embedder.Embed)
	if err != nil {
		return goerr.Wrap(err, "failed to open document collection")
	}
	ix.col = col
	return nil
}

// Count returns the number of indexed chunks
func (ix *Index) Count() int {
	return ix.col.Count()
}

// Reset drops every indexed chunk
func (ix *Index) Reset() error {
	if err := ix.db.DeleteCollection(collectionName); err != nil {
		return goerr.Wrap(err, "failed to delete document collection")
	}
	return ix.open()
}

// Add embeds and indexes chunks. Chunks with an existing ID are replaced.
func (ix *Index) Add(ctx context.Context, chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:      c.ID,
			Content: c.Content,
			Metadata: map[string]string{
				metaDocType: c.DocType,
				metaSource:  c.Source,
				metaPage:    c.Page,
			},
		}
	}

	if err := ix.col.AddDocuments(ctx, docs, 4); err != nil {
		return goerr.Wrap(err, "failed to index chunks", goerr.V("count", len(chunks)))
	}
	return nil
}

// Search returns up to k chunks most similar to query
func (ix *Index) Search(ctx context.Context, query string, k int) ([]*model.DocumentChunk, error) {
	n := min(k, ix.col.Count())
	if n <= 0 || query == "" {
		return nil, nil
	}

	results, err := ix.col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search documents", goerr.V("query", query))
	}

	chunks := make([]*model.DocumentChunk, len(results))
	for i, r := range results {
		chunks[i] = &model.DocumentChunk{
			ID:         r.ID,
			Content:    r.Content,
			DocType:    r.Metadata[metaDocType],
			Source:     r.Metadata[metaSource],
			Page:       r.Metadata[metaPage],
			Similarity: r.Similarity,
		}
	}
	return chunks, nil
}

func chunkID(source string, page int) string {
	return source + "#" + strconv.Itoa(page)
}
