// Package rev tracks a monotonically increasing revision per key. The MVCC
// store bumps a key's revision on every commit that touches it; near-cache
// records embed the revision they were written under and are discarded when
// it no longer matches. Use Local (default) for a single node, or Redis to
// share revisions across nodes so every near cache invalidates on commit.
package rev

import (
	"context"
	"time"
)

// Store abstracts where revisions live.
type Store interface {
	// Snapshot returns the current revision; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// Bump atomically increments and returns the new revision.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes long-inactive metadata if applicable.
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
