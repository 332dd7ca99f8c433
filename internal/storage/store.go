package storage

import (
	"context"
	"io"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Store is the document object store. Keys follow the
// {user_id}/{application_id}/{doc_type}.{ext} convention; the first path
// segment is the owning user and is what the policy engine keys off.
type Store interface {
	// Put writes the object and returns its size and content hash. An
	// existing object under the same key is replaced.
	Put(ctx context.Context, key string, r io.Reader) (*ObjectInfo, error)
	// Get opens the object for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	// URL returns the public download URL for a key.
	URL(key string) string
}
