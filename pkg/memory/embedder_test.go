package memory_test

import (
	"context"
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/memory"
)

type countingEmbedder struct {
	memory.Embedder
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return e.Embedder.Embed(ctx, text)
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	e := memory.NewHashEmbedder(16)

	a, err := e.Embed(ctx, "Songket Palembang")
	gt.NoError(t, err)
	gt.A(t, a).Length(16)

	b, err := e.Embed(ctx, "songket palembang!")
	gt.NoError(t, err)
	gt.Equal(t, a, b)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	gt.True(t, math.Abs(norm-1) < 1e-4)
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{Embedder: memory.NewHashEmbedder(8)}
	cached, err := memory.NewCachedEmbedder(inner, 100)
	gt.NoError(t, err)
	defer cached.Close()

	first, err := cached.Embed(ctx, "Nama: Widya")
	gt.NoError(t, err)
	cached.Wait()

	second, err := cached.Embed(ctx, "Nama: Widya")
	gt.NoError(t, err)

	gt.Equal(t, first, second)
	gt.Equal(t, inner.calls, 1)
	gt.Equal(t, cached.Dimension(), 8)
}
