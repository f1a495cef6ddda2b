package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/rdmitry/taskvault/internal/logger"
	"github.com/rdmitry/taskvault/internal/reconcile"
	"github.com/rdmitry/taskvault/internal/remote"
	"github.com/rdmitry/taskvault/internal/store"
	"github.com/rdmitry/taskvault/internal/tombstone"
	"github.com/rdmitry/taskvault/models"
)

// Protocol performs the read-reconcile-write cycle against the remote
// object store under optimistic concurrency.
type Protocol struct {
	client     remote.Client
	objectPath string
	snapshots  *store.SnapshotStore
	engine     *reconcile.Engine
	tombs      *tombstone.Tracker

	retryBudget  int
	retryBackoff time.Duration

	logger *logger.Logger
}

// NewProtocol constructs a Protocol. retryBudget is the total number of
// fetch-merge-write attempts per cycle; values below one are raised to one.
func NewProtocol(
	client remote.Client,
	objectPath string,
	snapshots *store.SnapshotStore,
	engine *reconcile.Engine,
	tombs *tombstone.Tracker,
	retryBudget int,
	retryBackoff time.Duration,
	log *logger.Logger,
) *Protocol {
	if retryBudget < 1 {
		retryBudget = 1
	}

	return &Protocol{
		client:       client,
		objectPath:   objectPath,
		snapshots:    snapshots,
		engine:       engine,
		tombs:        tombs,
		retryBudget:  retryBudget,
		retryBackoff: retryBackoff,
		logger:       log,
	}
}

// SyncOnce runs one full cycle: fetch remote, fetch local, reconcile,
// write back conditionally on the fetched version token.
//
// A write rejected for a stale token means another replica wrote between
// our fetch and our write; the whole cycle is re-run (re-fetch, re-merge,
// re-write) within the retry budget. Conflicts stop the cycle before any
// write and are returned for user resolution.
//
// After a successful remote write the local store is updated with the same
// merged snapshot before success is reported, so local and remote are
// identical by construction.
func (p *Protocol) SyncOnce(ctx context.Context) (Result, error) {
	var result Result

	backoff := retry.WithMaxRetries(uint64(p.retryBudget-1), retry.NewConstant(p.retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := p.cycle(ctx)
		if errors.Is(err, remote.ErrVersionConflict) {
			p.logger.Debug().Msg("remote version token went stale, re-running cycle")
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		result = res
		return nil
	})
	if errors.Is(err, remote.ErrVersionConflict) {
		return Result{}, fmt.Errorf("%w: %w", ErrRetryExhausted, err)
	}
	if err != nil {
		return Result{}, err
	}

	return result, nil
}

func (p *Protocol) cycle(ctx context.Context) (Result, error) {
	remoteSnap, token, err := p.fetchRemote(ctx)
	if err != nil {
		return Result{}, err
	}

	localSnap, err := p.snapshots.Load(ctx)
	if err != nil {
		return Result{}, &StorageError{Err: err}
	}

	merged, conflicts, err := p.engine.Merge(ctx, localSnap, remoteSnap, p.tombs, time.Now().UTC())
	if err != nil {
		return Result{}, &StorageError{Err: err}
	}

	if len(conflicts) > 0 {
		return Result{Outcome: OutcomeConflict, Conflicts: conflicts}, nil
	}

	content, err := remote.EncodeSnapshot(merged)
	if err != nil {
		return Result{}, err
	}

	if _, err = p.client.Put(ctx, p.objectPath, content, token); err != nil {
		return Result{}, err
	}

	if err = p.snapshots.Save(ctx, merged); err != nil {
		// The remote write landed but the local cache did not. The next
		// cycle re-fetches and converges; the caller must not report
		// this cycle as a success.
		return Result{}, &StorageError{Err: err}
	}

	p.logger.Info().
		Int("records", len(merged.Records)).
		Time("last_sync", merged.LastSync).
		Msg("sync cycle completed")

	return Result{Outcome: OutcomeSuccess, Merged: merged}, nil
}

// fetchRemote reads the shared object. Absence is an empty dataset with no
// token. Content that fails to decode is recovered from the local cached
// copy when possible, keeping the fetched token so the next write repairs
// the remote object; with no usable cache the decode error surfaces as-is
// rather than silently truncating data.
func (p *Protocol) fetchRemote(ctx context.Context) (models.Snapshot, string, error) {
	obj, err := p.client.Get(ctx, p.objectPath)
	if errors.Is(err, remote.ErrNotFound) {
		return models.EmptySnapshot(), "", nil
	}
	if err != nil {
		return models.Snapshot{}, "", err
	}

	snap, err := remote.DecodeSnapshot(obj.Content)
	if err == nil {
		return snap, obj.VersionToken, nil
	}

	var encErr *remote.EncodingError
	if !errors.As(err, &encErr) {
		return models.Snapshot{}, "", err
	}

	cached, loadErr := p.snapshots.Load(ctx)
	if loadErr != nil {
		p.logger.Error().Err(err).Msg("remote content undecodable and no usable local cache")
		return models.Snapshot{}, "", err
	}

	p.logger.Warn().Err(err).Msg("remote content undecodable, recovering from local cache")
	return cached, obj.VersionToken, nil
}

// ResolveConflicts settles the conflicts of a previous cycle and writes the
// resolved dataset to the remote object and the local cache. The write has
// to happen here: a plain follow-up cycle would re-run the detector against
// the still-divergent remote and report the same conflicts again, so a
// keep-local resolution could never converge.
//
// The resolution runs as its own conditional-write cycle under the retry
// budget: fetch, re-merge, settle the conflicted ids with the given
// choices, write back on the fetched token. When the dataset changed
// underneath the user and now conflicts on ids the choices do not cover,
// [ErrUnresolvedConflicts] is returned and no write happens.
func (p *Protocol) ResolveConflicts(ctx context.Context, conflicts []models.Conflict, choices []models.ResolutionChoice) error {
	// Reject malformed input before any network round trip.
	if len(conflicts) != len(choices) {
		return fmt.Errorf("%w: %d conflicts, %d resolutions", reconcile.ErrResolutionMismatch, len(conflicts), len(choices))
	}

	settled := make(map[string]struct{}, len(conflicts))
	for _, c := range conflicts {
		settled[c.ID] = struct{}{}
	}

	backoff := retry.WithMaxRetries(uint64(p.retryBudget-1), retry.NewConstant(p.retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := p.resolveCycle(ctx, conflicts, choices, settled)
		if errors.Is(err, remote.ErrVersionConflict) {
			p.logger.Debug().Msg("remote version token went stale during resolution, re-running cycle")
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, remote.ErrVersionConflict) {
		return fmt.Errorf("%w: %w", ErrRetryExhausted, err)
	}
	return err
}

func (p *Protocol) resolveCycle(ctx context.Context, conflicts []models.Conflict, choices []models.ResolutionChoice, settled map[string]struct{}) error {
	remoteSnap, token, err := p.fetchRemote(ctx)
	if err != nil {
		return err
	}

	localSnap, err := p.snapshots.Load(ctx)
	if err != nil {
		return &StorageError{Err: err}
	}

	merged, current, err := p.engine.Merge(ctx, localSnap, remoteSnap, p.tombs, time.Now().UTC())
	if err != nil {
		return &StorageError{Err: err}
	}

	for _, c := range current {
		if _, ok := settled[c.ID]; !ok {
			return fmt.Errorf("%w: id %s", ErrUnresolvedConflicts, c.ID)
		}
	}

	resolved, err := p.engine.ApplyResolutions(merged, conflicts, choices, time.Now().UTC())
	if err != nil {
		return err
	}

	content, err := remote.EncodeSnapshot(resolved)
	if err != nil {
		return err
	}

	if _, err = p.client.Put(ctx, p.objectPath, content, token); err != nil {
		return err
	}

	if err = p.snapshots.Save(ctx, resolved); err != nil {
		return &StorageError{Err: err}
	}

	p.logger.Info().
		Int("resolved", len(conflicts)).
		Int("records", len(resolved.Records)).
		Msg("conflict resolution written")

	return nil
}
