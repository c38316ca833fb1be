package cli

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestNewGeminiRequiresCredentials(t *testing.T) {
	cfg := &config{generativeModel: "gemini-2.5-flash", embeddingModel: "gemini-embedding-001"}
	_, err := cfg.newGemini(context.Background())
	gt.Error(t, err)

	cfg.geminiProject = "my-project"
	_, err = cfg.newGemini(context.Background())
	gt.Error(t, err)
}

func TestNewMemoryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := &config{memoryBackend: "memory", embeddingDim: 8}
		repo, err := cfg.newMemoryRepository(ctx)
		gt.NoError(t, err)
		gt.NoError(t, repo.Close())
	})

	t.Run("chromem", func(t *testing.T) {
		cfg := &config{memoryBackend: "chromem", memoryPath: filepath.Join(t.TempDir(), "memory"), embeddingDim: 8}
		repo, err := cfg.newMemoryRepository(ctx)
		gt.NoError(t, err)
		gt.NoError(t, repo.Close())
	})

	t.Run("firestore without project", func(t *testing.T) {
		cfg := &config{memoryBackend: "firestore"}
		_, err := cfg.newMemoryRepository(ctx)
		gt.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config{memoryBackend: "redis"}
		_, err := cfg.newMemoryRepository(ctx)
		gt.Error(t, err)
	})
}

func TestNewCatalogSQLiteWithSeed(t *testing.T) {
	ctx := context.Background()
	cfg := &config{
		catalogBackend: "sqlite",
		sqlitePath:     filepath.Join(t.TempDir(), "catalog.db"),
		catalogSeed:    "../catalog/testdata/seed.yaml",
	}

	c, err := cfg.newCatalog(ctx)
	gt.NoError(t, err)
	defer c.Close()

	u, err := c.GetUMKM(ctx, 1)
	gt.NoError(t, err)
	gt.Equal(t, u.Name, "Songket Cek Ipah")
}

func TestNewCatalogErrors(t *testing.T) {
	ctx := context.Background()

	_, err := (&config{catalogBackend: "bigquery"}).newCatalog(ctx)
	gt.Error(t, err)

	_, err = (&config{catalogBackend: "postgres"}).newCatalog(ctx)
	gt.Error(t, err)

	_, err = (&config{
		catalogBackend: "sqlite",
		sqlitePath:     filepath.Join(t.TempDir(), "catalog.db"),
		catalogSeed:    "no-such-seed.yaml",
	}).newCatalog(ctx)
	gt.Error(t, err)
}

func TestNewStorageFallsBackToLocalDir(t *testing.T) {
	ctx := context.Background()
	cfg := &config{storageDir: t.TempDir()}

	storage, err := cfg.newStorage(ctx)
	gt.NoError(t, err)

	w, err := storage.Put(ctx, "sessions/u1.json")
	gt.NoError(t, err)
	_, err = w.Write([]byte("[]"))
	gt.NoError(t, err)
	gt.NoError(t, w.Close())

	r, err := storage.Get(ctx, "sessions/u1.json")
	gt.NoError(t, err)
	defer r.Close()
	raw, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.Equal(t, string(raw), "[]")
}

func TestNewEmbedderRejectsBadDimension(t *testing.T) {
	_, _, err := (&config{embeddingDim: 0}).newEmbedder(nil)
	gt.Error(t, err)
}

func TestRuntimeCloseOrder(t *testing.T) {
	var order []int
	rt := &runtime{}
	for i := range 3 {
		rt.onClose(func() error {
			order = append(order, i)
			if i == 1 {
				return errors.New("close failed")
			}
			return nil
		})
	}

	err := rt.Close()
	gt.Error(t, err)
	gt.Equal(t, order, []int{2, 1, 0})
}
