package adapter_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/adapter"
)

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	store, err := adapter.NewFileStorage(root)
	gt.NoError(t, err)

	t.Run("put then get", func(t *testing.T) {
		w, err := store.Put(ctx, "sessions/thread-1.json")
		gt.NoError(t, err)
		_, err = w.Write([]byte(`[]`))
		gt.NoError(t, err)

		// not visible before close
		_, err = os.Stat(filepath.Join(root, "sessions", "thread-1.json"))
		gt.True(t, errors.Is(err, os.ErrNotExist))

		gt.NoError(t, w.Close())
		gt.NoError(t, w.Close())

		r, err := store.Get(ctx, "sessions/thread-1.json")
		gt.NoError(t, err)
		defer r.Close()
		data, err := io.ReadAll(r)
		gt.NoError(t, err)
		gt.Equal(t, string(data), "[]")
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := store.Get(ctx, "nothing.png")
		gt.True(t, errors.Is(err, adapter.ErrObjectNotFound))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		w, err := store.Put(ctx, "a.png")
		gt.NoError(t, err)
		gt.NoError(t, w.Close())

		gt.NoError(t, store.Delete(ctx, "a.png"))
		gt.NoError(t, store.Delete(ctx, "a.png"))
	})

	t.Run("key cannot escape root", func(t *testing.T) {
		for _, key := range []string{"../outside.png", "sessions/../../outside.json", `sessions\..\x.json`} {
			_, err := store.Put(ctx, key)
			gt.True(t, errors.Is(err, adapter.ErrInvalidKey))
		}
	})

	t.Run("dots inside a segment are allowed", func(t *testing.T) {
		w, err := store.Put(ctx, "sessions/a..b.json")
		gt.NoError(t, err)
		gt.NoError(t, w.Close())

		r, err := store.Get(ctx, "sessions/a..b.json")
		gt.NoError(t, err)
		gt.NoError(t, r.Close())
	})
}

func TestCloudStorage(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET is not set")
	}

	ctx := context.Background()
	store, err := adapter.NewStorage(ctx, bucket, adapter.WithPrefix("sribot-test/"))
	gt.NoError(t, err)

	w, err := store.Put(ctx, "hello.txt")
	gt.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	gt.NoError(t, err)
	gt.NoError(t, w.Close())

	r, err := store.Get(ctx, "hello.txt")
	gt.NoError(t, err)
	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.NoError(t, r.Close())
	gt.Equal(t, string(data), "hello")

	gt.NoError(t, store.Delete(ctx, "hello.txt"))
	_, err = store.Get(ctx, "hello.txt")
	gt.True(t, errors.Is(err, adapter.ErrObjectNotFound))
}
