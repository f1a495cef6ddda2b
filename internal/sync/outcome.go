package sync

import "github.com/rdmitry/taskvault/models"

// Outcome classifies how one sync cycle ended.
type Outcome string

const (
	// OutcomeSuccess: the merged snapshot was written remotely and
	// locally; both sides are identical by construction.
	OutcomeSuccess Outcome = "success"

	// OutcomeConflict: the merge found conflicts requiring user
	// resolution. Nothing was written.
	OutcomeConflict Outcome = "conflict"
)

// Result is the outcome of one [Protocol.SyncOnce] cycle.
type Result struct {
	Outcome Outcome

	// Merged is the snapshot both sides hold after a successful cycle.
	Merged models.Snapshot

	// Conflicts is non-empty exactly when Outcome is OutcomeConflict.
	Conflicts []models.Conflict
}
