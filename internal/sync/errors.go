package sync

import (
	"errors"
	"fmt"
)

// ErrRetryExhausted is returned when a cycle ran out of its retry budget
// while racing another replica for the remote version token. Surfaced
// instead of retrying indefinitely so two devices cannot spin against each
// other without bound.
var ErrRetryExhausted = errors.New("retry budget exhausted under version contention")

// ErrUnresolvedConflicts is returned when the dataset changed while the
// user was deciding and the new state conflicts on ids the given choices do
// not cover. The caller re-syncs to obtain the current conflict set.
var ErrUnresolvedConflicts = errors.New("dataset changed under resolution, unresolved conflicts remain")

// StorageError wraps a local storage or cipher failure. Terminal for the
// cycle that hit it, not for the process: the next scheduled trigger
// retries from scratch.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
