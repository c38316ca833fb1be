package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	recordsCollection = "records"
	distanceField     = "vector_distance"

	// upper bound of FindNearest
	maxNearestLimit = 1000
)

// Firestore stores memories at <tag>/<user_id>/records/<id>. Vector search
// requires a vector index on the embedding field of the records collection group.
type Firestore struct {
	client *firestore.Client
}

var _ MemoryRepository = (*Firestore)(nil)

func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID), goerr.V("database_id", databaseID))
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) records(ns model.Namespace) *firestore.CollectionRef {
	return r.client.Collection(ns.Tag).Doc(ns.UserID).Collection(recordsCollection)
}

func (r *Firestore) PutMemory(ctx context.Context, ns model.Namespace, mem *model.Memory) error {
	if _, err := r.records(ns).Doc(string(mem.ID)).Set(ctx, mem); err != nil {
		return goerr.Wrap(err, "failed to put memory", goerr.V("namespace", ns.String()), goerr.V("id", mem.ID))
	}
	return nil
}

func (r *Firestore) GetMemory(ctx context.Context, ns model.Namespace, id model.MemoryID) (*model.Memory, error) {
	doc, err := r.records(ns).Doc(string(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V("namespace", ns.String()), goerr.V("id", id))
	}

	var mem model.Memory
	if err := doc.DataTo(&mem); err != nil {
		return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("id", id))
	}
	return &mem, nil
}

func (r *Firestore) DeleteMemory(ctx context.Context, ns model.Namespace, id model.MemoryID) error {
	// Delete of a missing document succeeds in Firestore
	if _, err := r.records(ns).Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete memory", goerr.V("namespace", ns.String()), goerr.V("id", id))
	}
	return nil
}

func (r *Firestore) ListMemories(ctx context.Context, ns model.Namespace) ([]*model.Memory, error) {
	iter := r.records(ns).OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var memories []*model.Memory
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories", goerr.V("namespace", ns.String()))
		}

		var mem model.Memory
		if err := doc.DataTo(&mem); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("doc_id", doc.Ref.ID))
		}
		memories = append(memories, &mem)
	}

	sortMemories(memories)
	return memories, nil
}

func (r *Firestore) SearchMemories(ctx context.Context, ns model.Namespace, vector []float32, limit int) ([]*model.Memory, error) {
	if limit <= 0 || limit > maxNearestLimit {
		limit = maxNearestLimit
	}

	query := r.records(ns).FindNearest("embedding", firestore.Vector32(vector), limit, firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := query.Documents(ctx)
	defer iter.Stop()

	var memories []*model.Memory
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to search memories", goerr.V("namespace", ns.String()))
		}

		var mem model.Memory
		if err := doc.DataTo(&mem); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("doc_id", doc.Ref.ID))
		}
		// cosine distance is 1 - similarity
		if d, err := doc.DataAt(distanceField); err == nil {
			if distance, ok := d.(float64); ok {
				mem.Score = 1 - distance
			}
		}
		memories = append(memories, &mem)
	}

	return memories, nil
}

func (r *Firestore) DeleteNamespace(ctx context.Context, ns model.Namespace) (int, error) {
	refs, err := r.records(ns).DocumentRefs(ctx).GetAll()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list memory refs", goerr.V("namespace", ns.String()))
	}
	if len(refs) == 0 {
		return 0, nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return 0, goerr.Wrap(err, "failed to enqueue delete", goerr.V("doc_id", ref.ID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return deleted, goerr.Wrap(err, "failed to delete memory", goerr.V("doc_id", refs[i].ID))
		}
		deleted++
	}
	return deleted, nil
}

func (r *Firestore) Close() error {
	if err := r.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}
