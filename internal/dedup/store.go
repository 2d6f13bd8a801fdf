// Package dedup persists the close time of the last candle a notification
// was sent for, keyed by strategy, symbol and timeframe.
package dedup

import (
	"context"
	"io"
)

// Store is a minimal integer key-value store.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)

	// Set stores value under key with no expiry.
	Set(ctx context.Context, key string, value int64) error
}

// Closer is implemented by stores holding a connection.
type Closer interface {
	Store
	io.Closer
}
