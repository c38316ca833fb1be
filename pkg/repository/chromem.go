package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/philippgille/chromem-go"
)

const (
	metaCreatedAt = "created_at"
	metaUpdatedAt = "updated_at"

	maxQueryRetries = 16
)

var ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

// Chromem stores memories in an embedded chromem-go database, one collection
// per namespace. With an empty path the database lives in memory only.
type Chromem struct {
	db        *chromem.DB
	dimension int
}

var _ MemoryRepository = (*Chromem)(nil)

func NewChromem(path string, dimension int) (*Chromem, error) {
	if dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", dimension))
	}

	if path == "" {
		return &Chromem{db: chromem.NewDB(), dimension: dimension}, nil
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open chromem database", goerr.V("path", path))
	}
	return &Chromem{db: db, dimension: dimension}, nil
}

func collectionName(ns model.Namespace) string {
	return ns.Tag + ":" + ns.UserID
}

func (r *Chromem) collection(ns model.Namespace) (*chromem.Collection, error) {
	// embeddings are always supplied by the caller, so no embedding func is needed
	col, err := r.db.GetOrCreateCollection(collectionName(ns), nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open collection", goerr.V("namespace", ns.String()))
	}
	return col, nil
}

func (r *Chromem) PutMemory(ctx context.Context, ns model.Namespace, mem *model.Memory) error {
	if len(mem.Embedding) != r.dimension {
		return goerr.Wrap(ErrDimensionMismatch, "cannot store memory",
			goerr.V("expected", r.dimension), goerr.V("actual", len(mem.Embedding)))
	}

	col, err := r.collection(ns)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        string(mem.ID),
		Content:   mem.Text,
		Embedding: append([]float32(nil), mem.Embedding...),
		Metadata: map[string]string{
			metaCreatedAt: mem.CreatedAt.UTC().Format(time.RFC3339Nano),
			metaUpdatedAt: mem.UpdatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to add document", goerr.V("namespace", ns.String()), goerr.V("id", mem.ID))
	}
	return nil
}

func (r *Chromem) GetMemory(ctx context.Context, ns model.Namespace, id model.MemoryID) (*model.Memory, error) {
	col, err := r.collection(ns)
	if err != nil {
		return nil, err
	}

	doc, err := col.GetByID(ctx, string(id))
	if err != nil {
		// chromem reports a missing id only through the error text
		if strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("namespace", ns.String()), goerr.V("id", id))
	}

	return toMemory(doc.ID, doc.Content, doc.Embedding, doc.Metadata), nil
}

func (r *Chromem) DeleteMemory(ctx context.Context, ns model.Namespace, id model.MemoryID) error {
	existing, err := r.GetMemory(ctx, ns, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	col, err := r.collection(ns)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, string(id)); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("namespace", ns.String()), goerr.V("id", id))
	}
	return nil
}

// query ranks every document against vector. chromem has no scan API, so
// listing is a query with nResults equal to the collection size.
func (r *Chromem) query(ctx context.Context, ns model.Namespace, vector []float32, limit int) ([]*model.Memory, error) {
	col, err := r.collection(ns)
	if err != nil {
		return nil, err
	}

	var results []chromem.Result
	for attempt := 0; ; attempt++ {
		n := col.Count()
		if n == 0 {
			return nil, nil
		}
		if limit > 0 && limit < n {
			n = limit
		}

		results, err = col.QueryEmbedding(ctx, vector, n, nil, nil)
		if err == nil {
			break
		}
		// a concurrent delete can shrink the collection between Count and the query
		if col.Count() < n && attempt < maxQueryRetries {
			continue
		}
		return nil, goerr.Wrap(err, "failed to query collection", goerr.V("namespace", ns.String()), goerr.V("n_results", n))
	}

	memories := make([]*model.Memory, 0, len(results))
	for _, res := range results {
		mem := toMemory(res.ID, res.Content, res.Embedding, res.Metadata)
		mem.Score = float64(res.Similarity)
		memories = append(memories, mem)
	}
	return memories, nil
}

func (r *Chromem) ListMemories(ctx context.Context, ns model.Namespace) ([]*model.Memory, error) {
	ones := make([]float32, r.dimension)
	for i := range ones {
		ones[i] = 1
	}

	memories, err := r.query(ctx, ns, ones, 0)
	if err != nil {
		return nil, err
	}
	sortMemories(memories)
	for _, mem := range memories {
		mem.Score = 0
	}
	return memories, nil
}

func (r *Chromem) SearchMemories(ctx context.Context, ns model.Namespace, vector []float32, limit int) ([]*model.Memory, error) {
	if len(vector) != r.dimension {
		return nil, goerr.Wrap(ErrDimensionMismatch, "cannot search memories",
			goerr.V("expected", r.dimension), goerr.V("actual", len(vector)))
	}

	memories, err := r.query(ctx, ns, vector, limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Score > memories[j].Score
	})
	return memories, nil
}

func (r *Chromem) DeleteNamespace(ctx context.Context, ns model.Namespace) (int, error) {
	col := r.db.GetCollection(collectionName(ns), nil)
	if col == nil {
		return 0, nil
	}

	n := col.Count()
	if err := r.db.DeleteCollection(collectionName(ns)); err != nil {
		return 0, goerr.Wrap(err, "failed to delete collection", goerr.V("namespace", ns.String()))
	}
	return n, nil
}

func (r *Chromem) Close() error {
	return nil
}

func toMemory(id, content string, embedding []float32, meta map[string]string) *model.Memory {
	mem := &model.Memory{
		ID:        model.MemoryID(id),
		Text:      content,
		Embedding: append([]float32(nil), embedding...),
	}
	if ts, err := time.Parse(time.RFC3339Nano, meta[metaCreatedAt]); err == nil {
		mem.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, meta[metaUpdatedAt]); err == nil {
		mem.UpdatedAt = ts
	}
	return mem
}
