// Package storage persists named blobs such as coordinator roster snapshots.
// It defines the Storage interface (port) and implementations for local disk
// and S3.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Static errors for storage operations.
var (
	// ErrNotFound is returned by Load when no object exists under the key.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidKey is returned for empty keys or keys that escape the root.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Storage saves and loads whole objects by key.
type Storage interface {
	// Save replaces the object stored under key with the content of data.
	Save(ctx context.Context, key string, data io.Reader) error

	// Load opens the object stored under key.
	// The caller is responsible for closing the returned ReadCloser.
	// Returns ErrNotFound if the object does not exist.
	Load(ctx context.Context, key string) (io.ReadCloser, error)
}

// validateKey rejects keys that are empty or that could address a location
// outside the storage root.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
