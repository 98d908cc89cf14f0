package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds uploaded document content by key.
type BlobStore interface {
	Save(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// LocalBlobStore keeps blobs as files under BaseDir.
type LocalBlobStore struct {
	BaseDir string
}

func NewLocalBlobStore(baseDir string) *LocalBlobStore {
	return &LocalBlobStore{BaseDir: baseDir}
}

func (s *LocalBlobStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") || clean == "/" {
		return "", ErrBlobNotFound
	}
	return filepath.Join(s.BaseDir, clean), nil
}

func (s *LocalBlobStore) Save(_ context.Context, key string, content []byte, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, content, 0644)
}

func (s *LocalBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	return data, err
}

func (s *LocalBlobStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
