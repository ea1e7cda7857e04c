package shutter

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a key or blob does not exist.
var ErrNotFound = errors.New("not found")

// BlobStore provides an abstract interface for storing photo bytes.
// All blobs live under a flat name within a single logical directory.
type BlobStore interface {
	// WriteBlob stores data under name and returns the path it can be read back from
	WriteBlob(ctx context.Context, name string, data []byte) (string, error)

	// ReadBlob returns the bytes stored at path, or ErrNotFound
	ReadBlob(ctx context.Context, path string) ([]byte, error)

	// DeleteBlob removes the blob stored at path, or returns ErrNotFound
	DeleteBlob(ctx context.Context, path string) error

	// ListBlobs returns the names of all stored blobs
	ListBlobs(ctx context.Context) ([]string, error)
}

// KeyValue provides an abstract interface for small string values.
type KeyValue interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error
}

// Store is a backend that serves both capabilities.
// Different implementations keep data in different formats (file tree vs single bbolt file).
type Store interface {
	BlobStore
	KeyValue

	// Close closes the store and releases resources
	Close() error
}
