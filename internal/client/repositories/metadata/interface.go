// Package metadata persists small client-side key/value records: the
// identity provider's session blob, per-user migration markers and cached
// responses. Keys are namespaced by prefix so that sign-out can purge every
// session artifact in one call.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns every record whose key starts with prefix; "" lists all.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	// DeleteByPrefix removes every record whose key starts with one of the
	// prefixes and reports how many were removed.
	DeleteByPrefix(ctx context.Context, prefixes ...string) (int64, error)
}
