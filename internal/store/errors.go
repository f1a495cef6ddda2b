package store

import "errors"

// ErrBlobNotFound is returned by [BlobStore.GetBlob] when no blob exists
// under the requested key.
var ErrBlobNotFound = errors.New("blob not found")
