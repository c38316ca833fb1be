package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/sribot/pkg/model"
)

// Memory is an in-process MemoryRepository. Records are lost on exit.
type Memory struct {
	mu      sync.RWMutex
	records map[model.Namespace]map[model.MemoryID]*model.Memory
}

var _ MemoryRepository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		records: make(map[model.Namespace]map[model.MemoryID]*model.Memory),
	}
}

func cloneMemory(mem *model.Memory) *model.Memory {
	c := *mem
	c.Embedding = append([]float32(nil), mem.Embedding...)
	return &c
}

func (r *Memory) PutMemory(ctx context.Context, ns model.Namespace, mem *model.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.records[ns]
	if !ok {
		bucket = make(map[model.MemoryID]*model.Memory)
		r.records[ns] = bucket
	}
	bucket[mem.ID] = cloneMemory(mem)
	return nil
}

func (r *Memory) GetMemory(ctx context.Context, ns model.Namespace, id model.MemoryID) (*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mem, ok := r.records[ns][id]
	if !ok {
		return nil, nil
	}
	return cloneMemory(mem), nil
}

func (r *Memory) DeleteMemory(ctx context.Context, ns model.Namespace, id model.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records[ns], id)
	return nil
}

func (r *Memory) ListMemories(ctx context.Context, ns model.Namespace) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	memories := make([]*model.Memory, 0, len(r.records[ns]))
	for _, mem := range r.records[ns] {
		memories = append(memories, cloneMemory(mem))
	}
	sortMemories(memories)
	return memories, nil
}

func (r *Memory) SearchMemories(ctx context.Context, ns model.Namespace, vector []float32, limit int) ([]*model.Memory, error) {
	memories, err := r.ListMemories(ctx, ns)
	if err != nil {
		return nil, err
	}

	for _, mem := range memories {
		mem.Score = cosineSimilarity(vector, mem.Embedding)
	}
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Score > memories[j].Score
	})

	if limit > 0 && len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}

func (r *Memory) DeleteNamespace(ctx context.Context, ns model.Namespace) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.records[ns])
	delete(r.records, ns)
	return n, nil
}

func (r *Memory) Close() error {
	return nil
}
