package store

import "context"

//go:generate mockgen -source=interfaces.go -destination=../mock/blob_store_mock.go -package=mock

// BlobStore is the local durable key-value contract the engine consumes.
// Values are opaque serialized blobs; the store never interprets them.
type BlobStore interface {
	// GetBlob returns the blob stored under key, or [ErrBlobNotFound].
	GetBlob(ctx context.Context, key string) ([]byte, error)

	// SetBlob stores value under key, replacing any previous blob whole.
	SetBlob(ctx context.Context, key string, value []byte) error

	// RemoveBlob deletes the blob under key. Removing a missing key is
	// not an error.
	RemoveBlob(ctx context.Context, key string) error
}
