// Package reconcile implements the pairwise conflict detector, the snapshot
// merge, and conflict resolution. Everything here is a pure function of its
// inputs apart from the tombstone sweep the merge runs first.
package reconcile

import (
	"time"

	"github.com/rdmitry/taskvault/models"
)

// Detector decides whether two versions of the same record are in true
// conflict or can be merged silently.
type Detector struct {
	window time.Duration
}

// NewDetector constructs a Detector with the given conflict window: the
// span within which diverging completion flags count as a true conflict
// rather than a stale read.
func NewDetector(window time.Duration) Detector {
	return Detector{window: window}
}

// InConflict implements the pairwise comparison. Records with the same id
// conflict when:
//
//   - their text differs. Text divergence is always a conflict, no
//     timestamp can excuse overwriting a user's words; or
//   - their completed flags differ and the records were updated within the
//     conflict window of each other. A completion flip with a large time
//     gap is a stale read, resolved newest-wins during merge.
//
// Hidden differences never conflict; hidden is ephemeral display state and
// always resolves newest-wins. Identical records never conflict.
//
// The verdict is symmetric: InConflict(a, b) == InConflict(b, a).
func (d Detector) InConflict(local, remote models.Record) bool {
	if local.Equal(remote) {
		return false
	}

	if local.Text != remote.Text {
		return true
	}

	if local.Completed != remote.Completed {
		gap := local.UpdatedAt.Sub(remote.UpdatedAt)
		if gap < 0 {
			gap = -gap
		}
		return gap < d.window
	}

	return false
}

// Describe builds the conflict descriptor for a pair the detector flagged.
func Describe(local, remote models.Record) models.Conflict {
	l, r := local, remote
	return models.Conflict{
		ID:              local.ID,
		Kind:            models.ConflictKindModify,
		Local:           &l,
		Remote:          &r,
		LocalTimestamp:  local.UpdatedAt,
		RemoteTimestamp: remote.UpdatedAt,
	}
}
