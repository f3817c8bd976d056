// Package storage contains the blob store abstraction and its two backends:
// a local directory (through afero) and S3-compatible object storage (MinIO).
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectExists is returned by Put when the key is already taken. Stores never overwrite.
var ErrObjectExists = errors.New("object already exists")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	URL          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Storage is the blob store used by the upload workflow. Implementations are safe for concurrent use.
type Storage interface {
	// Put writes r under key and returns the object's retrieval URL in ObjectInfo.URL.
	// It fails with ErrObjectExists instead of overwriting.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// List enumerates objects whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
