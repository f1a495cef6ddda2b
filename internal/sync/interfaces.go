package sync

import (
	"context"

	"github.com/rdmitry/taskvault/models"
)

// Syncer is the slice of [Protocol] the scheduler drives. Split out so the
// scheduler's state machine can be exercised without a remote store.
type Syncer interface {
	SyncOnce(ctx context.Context) (Result, error)
	ResolveConflicts(ctx context.Context, conflicts []models.Conflict, choices []models.ResolutionChoice) error
}

// Reachability answers whether the remote store is currently reachable.
// The engine only consumes the answer; how it is obtained (OS network
// monitor, probe request) stays outside the state machine.
type Reachability interface {
	Online(ctx context.Context) bool
}

// Worker is a long-running background component. Run blocks until ctx is
// cancelled.
type Worker interface {
	Run(ctx context.Context)
}
