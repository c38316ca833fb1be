package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/adapter"
	"google.golang.org/genai"
)

// SessionStore persists the conversation history of a thread. A missing
// thread is an empty history.
type SessionStore interface {
	Load(ctx context.Context, threadID string) ([]*genai.Content, error)
	Save(ctx context.Context, threadID string, contents []*genai.Content) error
}

type memorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]*genai.Content
}

// NewMemorySessionStore keeps sessions in process; they are lost on restart
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		sessions: make(map[string][]*genai.Content),
	}
}

func (s *memorySessionStore) Load(ctx context.Context, threadID string) ([]*genai.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contents := s.sessions[threadID]
	out := make([]*genai.Content, len(contents))
	copy(out, contents)
	return out, nil
}

func (s *memorySessionStore) Save(ctx context.Context, threadID string, contents []*genai.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make([]*genai.Content, len(contents))
	copy(saved, contents)
	s.sessions[threadID] = saved
	return nil
}

type storageSessionStore struct {
	storage adapter.Storage
}

// NewStorageSessionStore checkpoints each thread as sessions/<thread>.json
func NewStorageSessionStore(storage adapter.Storage) SessionStore {
	return &storageSessionStore{storage: storage}
}

// sessionKey escapes the thread ID so that it is always one path segment
func sessionKey(threadID string) string {
	return "sessions/" + url.PathEscape(threadID) + ".json"
}

func (s *storageSessionStore) Load(ctx context.Context, threadID string) ([]*genai.Content, error) {
	reader, err := s.storage.Get(ctx, sessionKey(threadID))
	if errors.Is(err, adapter.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session from storage", goerr.V("thread_id", threadID))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read session data", goerr.V("thread_id", threadID))
	}

	var contents []*genai.Content
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal session contents", goerr.V("thread_id", threadID))
	}
	return contents, nil
}

func (s *storageSessionStore) Save(ctx context.Context, threadID string, contents []*genai.Content) error {
	data, err := json.Marshal(contents)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal session contents", goerr.V("thread_id", threadID))
	}

	writer, err := s.storage.Put(ctx, sessionKey(threadID))
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer", goerr.V("thread_id", threadID))
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write session to storage", goerr.V("thread_id", threadID))
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer", goerr.V("thread_id", threadID))
	}
	return nil
}
