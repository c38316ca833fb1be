package adapter

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidKey = goerr.New("invalid storage key")

type fileStorage struct {
	root string
}

// NewFileStorage stores objects as files under root
func NewFileStorage(root string) (Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create storage directory", goerr.V("root", root))
	}
	return &fileStorage{root: root}, nil
}

func (s *fileStorage) path(key string) (string, error) {
	cleaned := filepath.Clean("/" + key)
	if cleaned == "/" || hasParentSegment(key) {
		return "", goerr.Wrap(ErrInvalidKey, "key escapes storage root", goerr.V("key", key))
	}
	return filepath.Join(s.root, cleaned), nil
}

// hasParentSegment reports whether any path segment of key is ".."
func hasParentSegment(key string) bool {
	for _, seg := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func (s *fileStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create directory", goerr.V("key", key))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create temp file", goerr.V("key", key))
	}
	return &fileWriter{File: tmp, dst: path}, nil
}

func (s *fileStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(ErrObjectNotFound, "file does not exist", goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open file", goerr.V("key", key))
	}
	return f, nil
}

func (s *fileStorage) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return goerr.Wrap(err, "failed to remove file", goerr.V("key", key))
	}
	return nil
}

// fileWriter renames the temp file into place on Close so readers never see a partial object
type fileWriter struct {
	*os.File
	dst    string
	closed bool
}

func (w *fileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.File.Close(); err != nil {
		_ = os.Remove(w.File.Name())
		return goerr.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(w.File.Name(), w.dst); err != nil {
		_ = os.Remove(w.File.Name())
		return goerr.Wrap(err, "failed to move file into place", goerr.V("path", w.dst))
	}
	return nil
}
