// Package archive stores scan reports in cold storage.
package archive

import "context"

// Storage is a flat, path-addressed blob store.
type Storage interface {
	// Write stores data at the given path, replacing any existing object
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path. A missing object yields
	// core.ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)
}
