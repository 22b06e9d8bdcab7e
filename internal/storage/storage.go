// Package storage provides object storage abstractions for schema
// snapshot persistence.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStore abstracts object storage for small metadata blobs.
// Implementations include S3 and the local filesystem for testing.
// Schema snapshots are small, so there is no multipart path.
type ObjectStore interface {
	// Put writes an object, replacing any existing content.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get reads an object's full content. Returns ErrObjectNotFound if
	// the object does not exist.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Delete removes an object. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// List returns all object paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
