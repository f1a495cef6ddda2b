package remote

import "context"

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_client_mock.go -package=mock

// Object is one versioned value read from the remote store.
type Object struct {
	// Content is the raw UTF-8 payload of the object.
	Content []byte

	// VersionToken is the opaque value a subsequent conditional write
	// must present. The engine never interprets it.
	VersionToken string
}

// Client is the remote object store contract the engine consumes. The
// store enforces optimistic concurrency: a Put carrying a token fails with
// [ErrVersionConflict] when the object changed since that token was read.
type Client interface {
	// Get fetches the object at path together with its current version
	// token. Returns [ErrNotFound] when the object does not exist.
	Get(ctx context.Context, path string) (Object, error)

	// Put writes content at path. A non-empty versionToken makes the
	// write conditional on the remote object still matching it. Returns
	// the new version token on success.
	Put(ctx context.Context, path string, content []byte, versionToken string) (string, error)
}
