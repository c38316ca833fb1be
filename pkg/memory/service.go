package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/repository"
)

// Service is the per-user memory store. Mutations of one namespace are
// serialized within the process and exclude readers of that namespace;
// concurrent writers in other processes still race with last-write-wins.
type Service struct {
	repo     repository.MemoryRepository
	embedder Embedder
	now      func() time.Time

	locks sync.Map // model.Namespace -> *sync.RWMutex
}

// Option is a functional option for Service
type Option func(*Service)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a memory Service on top of a repository backend
func New(repo repository.MemoryRepository, embedder Embedder, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		embedder: embedder,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeleteResult reports what DeleteMatching removed
type DeleteResult struct {
	Count int
	Texts []string
}

// Change is one record rewritten by UpdateMatching
type Change struct {
	ID     model.MemoryID
	Before string
	After  string
}

func (s *Service) mutex(ns model.Namespace) *sync.RWMutex {
	v, _ := s.locks.LoadOrStore(ns, &sync.RWMutex{})
	return v.(*sync.RWMutex)
}

func (s *Service) lock(ns model.Namespace) func() {
	mu := s.mutex(ns)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) rlock(ns model.Namespace) func() {
	mu := s.mutex(ns)
	mu.RLock()
	return mu.RUnlock
}

// Add stores text as a new record with a generated id
func (s *Service) Add(ctx context.Context, ns model.Namespace, text string) (*model.Memory, error) {
	id := model.NewMemoryID()
	if err := s.Put(ctx, ns, id, text); err != nil {
		return nil, err
	}
	return &model.Memory{ID: id, Text: text}, nil
}

// Put inserts or overwrites the record. The embedding is recomputed and
// CreatedAt of an existing record is kept.
func (s *Service) Put(ctx context.Context, ns model.Namespace, id model.MemoryID, text string) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	defer s.lock(ns)()
	return s.put(ctx, ns, id, text)
}

func (s *Service) put(ctx context.Context, ns model.Namespace, id model.MemoryID, text string) error {
	if text == "" {
		return goerr.Wrap(model.ErrEmptyMemoryText, "refusing to store memory", goerr.V("id", id))
	}
	if id == "" {
		return goerr.New("memory id is empty")
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return goerr.Wrap(err, "failed to embed memory", goerr.V("namespace", ns.String()))
	}

	now := s.now()
	mem := &model.Memory{
		ID:        id,
		Text:      text,
		Embedding: vector,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := s.repo.GetMemory(ctx, ns, id)
	if err != nil {
		return goerr.Wrap(err, "failed to get memory", goerr.V("id", id))
	}
	if existing != nil {
		mem.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.PutMemory(ctx, ns, mem); err != nil {
		return goerr.Wrap(err, "failed to put memory", goerr.V("id", id), goerr.V("namespace", ns.String()))
	}
	return nil
}

// Search ranks records by similarity to query. An empty query returns every
// record ordered by creation time. limit <= 0 means no limit.
func (s *Service) Search(ctx context.Context, ns model.Namespace, query string, limit int) ([]*model.Memory, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	if query == "" {
		memories, err := s.ListAll(ctx, ns)
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(memories) > limit {
			memories = memories[:limit]
		}
		return memories, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	unlock := s.rlock(ns)
	memories, err := s.repo.SearchMemories(ctx, ns, vector, limit)
	unlock()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memories", goerr.V("namespace", ns.String()))
	}
	return memories, nil
}

// ListAll returns every record of the namespace
func (s *Service) ListAll(ctx context.Context, ns model.Namespace) ([]*model.Memory, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	defer s.rlock(ns)()

	memories, err := s.repo.ListMemories(ctx, ns)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories", goerr.V("namespace", ns.String()))
	}
	return memories, nil
}

// Delete removes one record; deleting an absent id is not an error
func (s *Service) Delete(ctx context.Context, ns model.Namespace, id model.MemoryID) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	defer s.lock(ns)()

	if err := s.repo.DeleteMemory(ctx, ns, id); err != nil {
		return goerr.Wrap(err, "failed to delete memory", goerr.V("id", id))
	}
	return nil
}

// DeleteMatching deletes every record selected by MatchIdentifier
func (s *Service) DeleteMatching(ctx context.Context, ns model.Namespace, identifier string) (*DeleteResult, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	defer s.lock(ns)()

	memories, err := s.repo.ListMemories(ctx, ns)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories", goerr.V("namespace", ns.String()))
	}

	result := &DeleteResult{}
	for _, mem := range memories {
		if !MatchIdentifier(mem, identifier) {
			continue
		}
		if err := s.repo.DeleteMemory(ctx, ns, mem.ID); err != nil {
			return result, goerr.Wrap(err, "failed to delete memory", goerr.V("id", mem.ID))
		}
		result.Count++
		result.Texts = append(result.Texts, mem.Text)
	}
	return result, nil
}

// UpdateMatching replaces oldFragment with newFragment inside every record
// containing it. Records keep their id. A replacement that would leave the
// text empty is skipped.
func (s *Service) UpdateMatching(ctx context.Context, ns model.Namespace, oldFragment, newFragment string) ([]Change, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	defer s.lock(ns)()

	memories, err := s.repo.ListMemories(ctx, ns)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories", goerr.V("namespace", ns.String()))
	}

	var changes []Change
	for _, mem := range memories {
		after, ok := ReplaceFragment(mem.Text, oldFragment, newFragment)
		if !ok || after == "" {
			continue
		}
		if err := s.put(ctx, ns, mem.ID, after); err != nil {
			return changes, err
		}
		changes = append(changes, Change{ID: mem.ID, Before: mem.Text, After: after})
	}
	return changes, nil
}

// ClearNamespace deletes every record of the namespace and returns the count
func (s *Service) ClearNamespace(ctx context.Context, ns model.Namespace) (int, error) {
	if err := ns.Validate(); err != nil {
		return 0, err
	}
	defer s.lock(ns)()

	n, err := s.repo.DeleteNamespace(ctx, ns)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to clear memories", goerr.V("namespace", ns.String()))
	}
	return n, nil
}
