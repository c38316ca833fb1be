package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/adapter"
)

// Embedder turns text into a vector for similarity search
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

type geminiEmbedder struct {
	gemini    adapter.Gemini
	dimension int
}

// NewGeminiEmbedder embeds with the Gemini embedding model at the given dimensionality
func NewGeminiEmbedder(gemini adapter.Gemini, dimension int) Embedder {
	return &geminiEmbedder{gemini: gemini, dimension: dimension}
}

func (e *geminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.gemini.Embedding(ctx, text, e.dimension)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed text")
	}
	return vec, nil
}

func (e *geminiEmbedder) Dimension() int { return e.dimension }

// CachedEmbedder memoizes embeddings by text
type CachedEmbedder struct {
	next  Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps next with a cache holding roughly maxEntries vectors
func NewCachedEmbedder(next Embedder, maxEntries int64) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}

	return &CachedEmbedder{next: next, cache: cache}, nil
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return append([]float32(nil), vec...), nil
		}
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, append([]float32(nil), vec...), 1)
	return vec, nil
}

func (e *CachedEmbedder) Dimension() int { return e.next.Dimension() }

// Wait blocks until pending cache writes are applied
func (e *CachedEmbedder) Wait() { e.cache.Wait() }

func (e *CachedEmbedder) Close() { e.cache.Close() }

// HashEmbedder is a deterministic offline embedder. Each word maps to a
// pseudo-random unit vector and a text is the normalized sum of its words,
// so texts sharing words are similar. Used by tests and local runs without
// a model.
type HashEmbedder struct {
	dimension int
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{dimension: dimension}
}

func (e *HashEmbedder) Dimension() int { return e.dimension }

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		words = []string{text}
	}

	for _, word := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(word))
		seed := h.Sum64()
		for i := range vec {
			seed = seed*6364136223846793005 + 1442695040888963407
			vec[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}
