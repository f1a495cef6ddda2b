package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rdmitry/taskvault/internal/crypto"
	"github.com/rdmitry/taskvault/models"
)

// Fixed blob keys. Each value is rewritten whole on every mutation.
const (
	KeySnapshot   = "dataset/snapshot"
	KeyTombstones = "dataset/tombstones"
	KeySyncState  = "sync/state"
	KeySalt       = "crypto/salt"
)

// SnapshotStore persists the locally cached dataset snapshot, sealed at
// rest with the engine's symmetric cipher.
type SnapshotStore struct {
	blobs  BlobStore
	cipher crypto.Cipher
}

// NewSnapshotStore constructs a SnapshotStore over blobs and cipher.
func NewSnapshotStore(blobs BlobStore, cipher crypto.Cipher) *SnapshotStore {
	return &SnapshotStore{blobs: blobs, cipher: cipher}
}

// Load returns the cached snapshot. A device that has never synced has no
// cache yet; that case yields an empty snapshot rather than an error.
func (s *SnapshotStore) Load(ctx context.Context) (models.Snapshot, error) {
	blob, err := s.blobs.GetBlob(ctx, KeySnapshot)
	if errors.Is(err, ErrBlobNotFound) {
		return models.EmptySnapshot(), nil
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("load snapshot blob: %w", err)
	}

	payload, err := s.cipher.Decrypt(string(blob))
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("open snapshot blob: %w", err)
	}

	var snap models.Snapshot
	if err = json.Unmarshal([]byte(payload), &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	return snap, nil
}

// Save seals snap and rewrites the cache blob.
func (s *SnapshotStore) Save(ctx context.Context, snap models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	sealed, err := s.cipher.Encrypt(string(payload))
	if err != nil {
		return fmt.Errorf("seal snapshot: %w", err)
	}

	if err = s.blobs.SetBlob(ctx, KeySnapshot, []byte(sealed)); err != nil {
		return fmt.Errorf("save snapshot blob: %w", err)
	}

	return nil
}

// StateCache is the best-effort persistence of the scheduler's SyncState,
// used only to pre-populate state on restart. Failures are reported but a
// missing or stale cache never blocks the engine.
type StateCache struct {
	blobs BlobStore
}

// NewStateCache constructs a StateCache over blobs.
func NewStateCache(blobs BlobStore) *StateCache {
	return &StateCache{blobs: blobs}
}

// Load returns the cached sync state, or false when none is cached.
func (c *StateCache) Load(ctx context.Context) (models.SyncState, bool) {
	blob, err := c.blobs.GetBlob(ctx, KeySyncState)
	if err != nil {
		return models.SyncState{}, false
	}

	var state models.SyncState
	if err = json.Unmarshal(blob, &state); err != nil {
		return models.SyncState{}, false
	}

	return state, true
}

// Save rewrites the cached sync state.
func (c *StateCache) Save(ctx context.Context, state models.SyncState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode sync state: %w", err)
	}

	if err = c.blobs.SetBlob(ctx, KeySyncState, blob); err != nil {
		return fmt.Errorf("save sync state blob: %w", err)
	}

	return nil
}
