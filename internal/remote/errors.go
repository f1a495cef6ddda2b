package remote

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the requested object does not exist on the
	// remote store. Not an error condition for the engine: a missing
	// dataset object is an empty dataset.
	ErrNotFound = errors.New("remote object not found")

	// ErrVersionConflict indicates a conditional write was rejected
	// because the supplied version token no longer matches the remote
	// state: another replica wrote in between.
	ErrVersionConflict = errors.New("version conflict")

	// ErrAuth indicates the credential was rejected or has expired.
	// Never retried; the user must re-authenticate.
	ErrAuth = errors.New("authentication failed")
)

// RateLimitedError indicates the store refused the request and told us
// when capacity resets. No immediate retry is attempted.
type RateLimitedError struct {
	Reset time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.Reset.Format(time.RFC3339))
}

// NetworkError wraps a transport-level failure. Transient: the next
// scheduled cycle retries from scratch.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// EncodingError indicates remote content could not be decoded as a valid
// dataset document. The protocol attempts recovery from the local cached
// copy before surfacing it.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: %v", e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}
