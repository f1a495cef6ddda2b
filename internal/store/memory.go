package store

import (
	"context"
	"sync"
)

// memoryBlobStore is a map-backed [BlobStore]. Nothing survives the
// process; it exists for tests and for running the engine against a
// scratch store.
type memoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory returns an in-memory [BlobStore].
func NewMemory() BlobStore {
	return &memoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *memoryBlobStore) GetBlob(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *memoryBlobStore) SetBlob(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.blobs[key] = v
	return nil
}

func (m *memoryBlobStore) RemoveBlob(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, key)
	return nil
}
