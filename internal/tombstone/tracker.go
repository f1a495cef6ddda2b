// Package tombstone records deletion intents so a deleted record id cannot
// be resurrected by a replica that still carries the record, while bounding
// how long the suppression lasts.
package tombstone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rdmitry/taskvault/internal/logger"
	"github.com/rdmitry/taskvault/internal/store"
	"github.com/rdmitry/taskvault/models"
)

// Tracker owns the tombstone set. The set is persisted as one blob under a
// fixed key and rewritten whole on every mutation; there are no partial
// updates to recover from. Expiry lookups share the cutoff of the most
// recent sweep.
type Tracker struct {
	blobs     store.BlobStore
	retention time.Duration
	logger    *logger.Logger

	mu         sync.RWMutex
	tombstones []models.Tombstone
	cutoff     time.Time
}

// NewTracker constructs a Tracker and loads the persisted set. A device
// without a persisted set starts empty.
func NewTracker(ctx context.Context, blobs store.BlobStore, retention time.Duration, log *logger.Logger) (*Tracker, error) {
	t := &Tracker{
		blobs:     blobs,
		retention: retention,
		logger:    log,
	}

	blob, err := blobs.GetBlob(ctx, store.KeyTombstones)
	if errors.Is(err, store.ErrBlobNotFound) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tombstones: %w", err)
	}

	if err = json.Unmarshal(blob, &t.tombstones); err != nil {
		return nil, fmt.Errorf("decode tombstones: %w", err)
	}

	return t, nil
}

// MarkDeleted records a deletion intent for id. Idempotent: a second call
// for an id that already carries a tombstone changes nothing, so the
// original deletion time is preserved.
func (t *Tracker) MarkDeleted(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ts := range t.tombstones {
		if ts.ID == id {
			return nil
		}
	}

	t.tombstones = append(t.tombstones, models.Tombstone{
		ID:        id,
		DeletedAt: time.Now().UTC(),
	})

	return t.persist(ctx)
}

// IsDeleted reports whether a non-expired tombstone exists for id.
// Expiry is evaluated against the cutoff of the last sweep, so every lookup
// of a merge pass that sweeps first returns the same verdict no matter how
// long the pass takes. Before the first sweep the wall clock is used.
func (t *Tracker) IsDeleted(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.cutoff
	if cutoff.IsZero() {
		cutoff = time.Now().UTC()
	}
	for _, ts := range t.tombstones {
		if ts.ID == id && !ts.Expired(cutoff, t.retention) {
			return true
		}
	}
	return false
}

// SweepExpired removes tombstones older than the retention window, measured
// against now, and persists the survivors. It runs to completion before
// returning, and now becomes the cutoff for subsequent IsDeleted lookups,
// so a merge pass that sweeps first sees one consistent cutoff throughout.
func (t *Tracker) SweepExpired(ctx context.Context, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cutoff = now

	kept := t.tombstones[:0]
	for _, ts := range t.tombstones {
		if !ts.Expired(now, t.retention) {
			kept = append(kept, ts)
		}
	}

	if len(kept) == len(t.tombstones) {
		return nil
	}

	swept := len(t.tombstones) - len(kept)
	t.tombstones = kept
	t.logger.Debug().Int("swept", swept).Msg("expired tombstones removed")

	return t.persist(ctx)
}

// Tombstones returns a copy of the current set.
func (t *Tracker) Tombstones() []models.Tombstone {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Tombstone, len(t.tombstones))
	copy(out, t.tombstones)
	return out
}

// persist rewrites the whole set. Callers hold t.mu.
func (t *Tracker) persist(ctx context.Context) error {
	blob, err := json.Marshal(t.tombstones)
	if err != nil {
		return fmt.Errorf("encode tombstones: %w", err)
	}

	if err = t.blobs.SetBlob(ctx, store.KeyTombstones, blob); err != nil {
		return fmt.Errorf("save tombstones: %w", err)
	}

	return nil
}
