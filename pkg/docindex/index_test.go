package docindex_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/docindex"
	"github.com/m-mizutani/sribot/pkg/memory"
	"github.com/m-mizutani/sribot/pkg/model"
)

func TestIndexSearch(t *testing.T) {
	ctx := context.Background()
	ix, err := docindex.Open("", memory.NewHashEmbedder(64))
	gt.NoError(t, err)

	gt.NoError(t, ix.Add(ctx, []*model.DocumentChunk{
		{ID: "a", Content: "Motif lepus memenuhi kain dengan benang emas", DocType: "motif", Source: "motif.md", Page: "1"},
		{ID: "b", Content: "Songket dipakai pada acara pernikahan adat Palembang", DocType: "adat", Source: "adat.md", Page: "2"},
	}))
	gt.Equal(t, ix.Count(), 2)

	results, err := ix.Search(ctx, "motif lepus benang emas", 10)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].ID, "a")
	gt.Equal(t, results[0].DocType, "motif")
	gt.Equal(t, results[0].Page, "1")

	results, err = ix.Search(ctx, "pernikahan", 1)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
}

func TestIndexEmpty(t *testing.T) {
	ix, err := docindex.Open("", memory.NewHashEmbedder(8))
	gt.NoError(t, err)

	results, err := ix.Search(context.Background(), "songket", 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(0)
}

func TestIngestFilePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	doc := filepath.Join(dir, "sejarah_songket.md")
	gt.NoError(t, os.WriteFile(doc, []byte("Songket berasal dari kata sungkit. Kain ini ditenun dengan benang emas."), 0o644))

	dbPath := filepath.Join(dir, "index")
	ix, err := docindex.Open(dbPath, memory.NewHashEmbedder(16))
	gt.NoError(t, err)

	n, err := ix.IngestFile(ctx, doc, docindex.DefaultChunkSize, docindex.DefaultChunkOverlap)
	gt.NoError(t, err)
	gt.Equal(t, n, 1)

	reopened, err := docindex.Open(dbPath, memory.NewHashEmbedder(16))
	gt.NoError(t, err)
	gt.Equal(t, reopened.Count(), 1)

	results, err := reopened.Search(ctx, "sungkit", 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
	gt.Equal(t, results[0].DocType, "sejarah_songket")
	gt.Equal(t, results[0].Source, doc)
	gt.Equal(t, results[0].Page, "1")

	gt.NoError(t, reopened.Reset())
	gt.Equal(t, reopened.Count(), 0)
}
