package store

import (
	"context"
)

// KeyValueStore defines the read/delete contract the sidecar needs from the
// hierarchical key-value store holding the overlay network state.
//
// FetchTree returns the raw response body of a recursive read below apiPath.
// Delete removes exactly the given key. Neither method retries; failures are
// returned as *TransportError or *HTTPStatusError so callers can decide.
type KeyValueStore interface {
	FetchTree(ctx context.Context, apiPath string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
