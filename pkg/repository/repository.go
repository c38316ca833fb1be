package repository

import (
	"context"
	"math"
	"sort"

	"github.com/m-mizutani/sribot/pkg/model"
)

// MemoryRepository stores memory records. Every method is scoped to one namespace;
// implementations must never return a record of another namespace.
type MemoryRepository interface {
	// PutMemory inserts or overwrites the record with the same ID
	PutMemory(ctx context.Context, ns model.Namespace, mem *model.Memory) error

	// GetMemory returns nil without error when the record does not exist
	GetMemory(ctx context.Context, ns model.Namespace, id model.MemoryID) (*model.Memory, error)

	// DeleteMemory is a no-op when the record does not exist
	DeleteMemory(ctx context.Context, ns model.Namespace, id model.MemoryID) error

	// ListMemories returns all records ordered by CreatedAt, then ID
	ListMemories(ctx context.Context, ns model.Namespace) ([]*model.Memory, error)

	// SearchMemories returns up to limit records ranked by cosine similarity
	// to vector, with Score set
	SearchMemories(ctx context.Context, ns model.Namespace, vector []float32, limit int) ([]*model.Memory, error)

	// DeleteNamespace removes every record of the namespace and returns the count
	DeleteNamespace(ctx context.Context, ns model.Namespace) (int, error)

	Close() error
}

// sortMemories orders records by creation time, then by ID
func sortMemories(memories []*model.Memory) {
	sort.SliceStable(memories, func(i, j int) bool {
		if !memories[i].CreatedAt.Equal(memories[j].CreatedAt) {
			return memories[i].CreatedAt.Before(memories[j].CreatedAt)
		}
		return memories[i].ID < memories[j].ID
	})
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
