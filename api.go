package ignite

import (
	"context"
	"time"

	"github.com/slukyano/ignite/affinity"
	"github.com/slukyano/ignite/near"
	"github.com/slukyano/ignite/rev"
)

// Store is the transactional in-memory key/value store with per-entry
// multiversioning. Payloads are opaque bytes; put KV with a Codec in front
// for typed access.
type Store interface {
	// Begin starts a transaction with a fresh snapshot.
	Begin() (*Txn, error)
	// Snapshot returns a read-only snapshot not tied to any transaction.
	Snapshot() Snapshot
	// ActiveTransactionCount reports transactions between Begin and
	// commit/rollback; operators use it to confirm drain before teardown.
	ActiveTransactionCount() int
	// WaitQuiesce blocks until no transactions are active or ctx is done.
	WaitQuiesce(ctx context.Context) error

	// Get reads a key through the given snapshot.
	Get(ctx context.Context, key string, snap Snapshot) ([]byte, bool, error)
	// Scan returns a lazy cursor over [lower, upper) at a fixed snapshot.
	Scan(snap Snapshot, lower, upper string, pred Predicate, proj Projection) *Scanner
	// Entry returns a read-only view of key for eviction/iteration callers.
	Entry(key string) EntryView

	// Touch records an access for eviction ranking; side-effect only.
	Touch(key string)
	// Evict attempts to remove the entry entirely; false when unsafe.
	Evict(ctx context.Context, key string) bool
	// PruneAll reclaims versions below the oldest active watermark. Runs on
	// a timer too; call it directly to force a sweep.
	PruneAll(ctx context.Context)

	Stats() Stats
	Close(ctx context.Context) error
}

// Options tune the store. Only Name is required; others have sensible
// defaults.
type Options struct {
	// Required. Identifies the store in near-cache keyspaces and encoded
	// entry views.
	Name string

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	// Topology classifies keys as primary/backup for this node.
	// nil => affinity.Local (single node, always primary).
	Topology affinity.Topology

	// Near enables a per-node cache of latest committed values.
	// nil => disabled.
	Near near.Provider
	// Revs invalidates near records across nodes. nil => in-process
	// revisions (single node); ignored when Near is nil.
	Revs rev.Store

	DefaultTTL    time.Duration // 0 => entries never expire
	MaxTxKeys     int           // per-transaction touched-key bound; 0 => 65536
	MaxEntries    int           // LRU-evict above this; 0 => unbounded
	PruneInterval time.Duration // background sweep period; 0 => 30s
	RevRetention  time.Duration // local revision retention; 0 => 24h
}

// New builds a Store. The returned store owns one background sweep
// goroutine until Close.
func New(opts Options) (Store, error) {
	return newStore(opts)
}
