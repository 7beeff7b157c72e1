// Package blob is the object-storage boundary shared by every pipeline stage.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Store abstracts the bucket operations the pipeline stages need. The GCS
// implementation is used in deployment; the in-memory implementation backs
// tests and the local runner.
type Store interface {
	// Get returns the full content of an object, or ErrNotFound.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put writes an object, replacing any existing content.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// PutIfAbsent writes an object only when the key does not exist yet.
	// It reports whether this call created the object; losing the race to a
	// concurrent writer is not an error.
	PutIfAbsent(ctx context.Context, bucket, key string, data []byte, contentType string) (bool, error)

	// Exists reports whether the object exists.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// Download streams an object to a local file.
	Download(ctx context.Context, bucket, key, destPath string) error

	// UploadFile streams a local file to an object.
	UploadFile(ctx context.Context, bucket, key, srcPath, contentType string) error
}
