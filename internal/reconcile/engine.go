package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rdmitry/taskvault/internal/logger"
	"github.com/rdmitry/taskvault/internal/tombstone"
	"github.com/rdmitry/taskvault/models"
)

// Engine merges two dataset snapshots into one. It owns no persistent
// state; everything it needs arrives as arguments.
type Engine struct {
	detector Detector
	logger   *logger.Logger
}

// NewEngine constructs an Engine whose detector uses the given conflict
// window.
func NewEngine(window time.Duration, log *logger.Logger) *Engine {
	return &Engine{
		detector: NewDetector(window),
		logger:   log,
	}
}

// Merge reconciles local and remote into one snapshot.
//
// The tombstone sweep runs to completion first, so every IsDeleted lookup
// in this pass sees the same cutoff. Ids flagged by the detector are
// excluded from the output and returned as conflicts; when any conflicts
// are present the returned snapshot is partial and the caller must not
// write it back until they are resolved. For everything else the newer
// record wins, ties favoring local because local is the replica performing
// the merge.
//
// One-sided ids are kept unless a live tombstone suppresses them. This
// guards against data loss from a partial remote write, at the documented
// cost that a deletion whose remote write is delayed past another device's
// tombstone sweep can be undone.
//
// Output records are sorted by creation time. Snapshot metadata comes from
// the side with the newer LastSync; settings are overlaid remote first,
// local winning on key collision. The output LastSync is now.
func (e *Engine) Merge(
	ctx context.Context,
	local, remote models.Snapshot,
	tombs *tombstone.Tracker,
	now time.Time,
) (models.Snapshot, []models.Conflict, error) {
	if err := tombs.SweepExpired(ctx, now); err != nil {
		return models.Snapshot{}, nil, fmt.Errorf("sweep tombstones: %w", err)
	}

	localIdx := local.Index()
	remoteIdx := remote.Index()

	var conflicts []models.Conflict
	conflicted := make(map[string]struct{})
	for _, lr := range local.Records {
		rr, onBoth := remoteIdx[lr.ID]
		if !onBoth {
			continue
		}
		if e.detector.InConflict(lr, rr) {
			conflicts = append(conflicts, Describe(lr, rr))
			conflicted[lr.ID] = struct{}{}
		}
	}

	var merged []models.Record

	for _, lr := range local.Records {
		if _, isConflict := conflicted[lr.ID]; isConflict {
			continue
		}
		if tombs.IsDeleted(lr.ID) {
			continue
		}

		rr, onBoth := remoteIdx[lr.ID]
		if !onBoth {
			// Local-only id: kept. Dropping it here would silently lose
			// an edit the remote object never saw.
			merged = append(merged, lr)
			continue
		}

		if rr.UpdatedAt.After(lr.UpdatedAt) {
			merged = append(merged, rr)
		} else {
			merged = append(merged, lr)
		}
	}

	for _, rr := range remote.Records {
		if _, seen := localIdx[rr.ID]; seen {
			continue
		}
		if tombs.IsDeleted(rr.ID) {
			continue
		}
		// Remote-only id: another replica added it, or a partial remote
		// write dropped our knowledge of it. Either way it is kept.
		merged = append(merged, rr)
	}

	sortRecords(merged)

	out := models.Snapshot{
		Records:  merged,
		LastSync: now,
	}

	base := local
	if remote.LastSync.After(local.LastSync) {
		base = remote
	}
	out.Version = base.Version
	if out.Version == "" {
		out.Version = models.SchemaVersion
	}
	out.LastResetDate = base.LastResetDate
	out.Settings = overlaySettings(remote.Settings, local.Settings)

	if len(conflicts) > 0 {
		e.logger.Warn().Int("conflicts", len(conflicts)).Msg("merge found unresolved conflicts")
	}

	return out, conflicts, nil
}

// ApplyResolutions settles the given conflicts against snap: conflicted ids
// are replaced by the outcome of Resolve, or removed when the resolution
// drops them. The result is re-sorted and restamped.
func (e *Engine) ApplyResolutions(
	snap models.Snapshot,
	conflicts []models.Conflict,
	choices []models.ResolutionChoice,
	now time.Time,
) (models.Snapshot, error) {
	resolved, err := Resolve(conflicts, choices, now)
	if err != nil {
		return models.Snapshot{}, err
	}

	drop := make(map[string]struct{}, len(conflicts))
	for _, c := range conflicts {
		drop[c.ID] = struct{}{}
	}

	records := make([]models.Record, 0, len(snap.Records)+len(resolved))
	for _, rec := range snap.Records {
		if _, ok := drop[rec.ID]; ok {
			continue
		}
		records = append(records, rec)
	}
	records = append(records, resolved...)
	sortRecords(records)

	snap.Records = records
	snap.LastSync = now
	return snap, nil
}

// sortRecords orders by creation time ascending, falling back to id so the
// order is deterministic for records created in the same instant.
func sortRecords(records []models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// overlaySettings merges shallowly: remote keys first, local overrides.
func overlaySettings(remote, local map[string]string) map[string]string {
	if remote == nil && local == nil {
		return nil
	}

	out := make(map[string]string, len(remote)+len(local))
	for k, v := range remote {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}
