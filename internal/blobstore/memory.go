package blobstore

import (
	"context"
	"fmt"
	"sync"
)

const memScheme = "mem"

type blob struct {
	data        []byte
	contentType string
}

// MemoryStore is an in-memory Store for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	bucket string
	blobs  map[string]blob
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory bucket.
func NewMemoryStore(bucket string) *MemoryStore {
	if bucket == "" {
		bucket = "local"
	}
	return &MemoryStore{bucket: bucket, blobs: make(map[string]blob)}
}

// Put stores a copy of data.
func (s *MemoryStore) Put(ctx context.Context, userID, filename, contentType string, data []byte) (string, error) {
	object := ObjectName(userID, filename)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[object] = blob{data: append([]byte(nil), data...), contentType: contentType}

	return fmt.Sprintf("%s://%s/%s", memScheme, s.bucket, object), nil
}

// Get returns a copy of the stored bytes.
func (s *MemoryStore) Get(ctx context.Context, uri string) ([]byte, string, error) {
	bucket, object, err := ParseURI(uri, memScheme)
	if err != nil {
		return nil, "", err
	}
	if bucket != s.bucket {
		return nil, "", fmt.Errorf("Get: %s: %w", uri, ErrNotFound)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[object]
	if !ok {
		return nil, "", fmt.Errorf("Get: %s: %w", uri, ErrNotFound)
	}
	return append([]byte(nil), b.data...), b.contentType, nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
