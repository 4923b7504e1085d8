package ignite

import (
	"sync"
	"sync/atomic"
	"time"
)

// version is a single entry state in a chain. Once committed (order > 0) a
// version is immutable; the committed portion of a chain is a singly linked
// list from newest to oldest reachable through atomic pointers, so readers
// never take the chain lock.
type version struct {
	createdBy uint64 // transaction id
	order     uint64 // commit order; 0 while pending
	value     []byte // nil for tombstones
	tombstone bool
	expireAt  time.Time // zero => never expires

	next atomic.Pointer[version] // older committed version
}

func (v *version) expired(now time.Time) bool {
	return !v.expireAt.IsZero() && now.After(v.expireAt)
}

// chain holds the version history of one key. Mutations (beginWrite, commit,
// rollback, prune) are serialized by mu; reads walk the committed list
// lock-free.
type chain struct {
	mu        sync.Mutex
	head      atomic.Pointer[version] // newest committed version
	pending   *version                // at most one uncommitted version
	pendingTx uint64
	removed   atomic.Bool // set when the entry was evicted from the store
}

func newChain() *chain { return &chain{} }

// visibleTo applies the snapshot isolation visibility rule: only committed
// versions at or below the snapshot's read order, and not created by a
// transaction that was still active when the snapshot was taken.
func visibleTo(v *version, snap Snapshot) bool {
	if v.order == 0 || v.order > snap.ReadOrder {
		return false
	}
	return !snap.activeAt(v.createdBy)
}

// readVersion returns the newest committed version visible to snap, or nil
// when none is. Only ErrEntryRemoved is returned as an error.
func (c *chain) readVersion(snap Snapshot) (*version, error) {
	if c.removed.Load() {
		return nil, ErrEntryRemoved
	}
	for v := c.head.Load(); v != nil; v = v.next.Load() {
		if visibleTo(v, snap) {
			return v, nil
		}
	}
	return nil, nil
}

// read returns the newest value visible to snap. A visible tombstone or an
// expired version reads as absent. The returned slice is shared; callers
// must not mutate it.
func (c *chain) read(snap Snapshot, now time.Time) ([]byte, bool, error) {
	v, err := c.readVersion(snap)
	if err != nil {
		return nil, false, err
	}
	if v == nil || v.tombstone || v.expired(now) {
		return nil, false, nil
	}
	return v.value, true, nil
}

// beginWrite installs a pending version for tx. A repeated write by the same
// transaction replaces its own pending version in place, so a chain never
// carries more than one pending version per transaction.
func (c *chain) beginWrite(tx uint64, value []byte, tombstone bool, expireAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed.Load() {
		return ErrEntryRemoved
	}
	if c.pending != nil && c.pendingTx != tx {
		return ErrWriteConflict
	}
	c.pending = &version{
		createdBy: tx,
		value:     value,
		tombstone: tombstone,
		expireAt:  expireAt,
	}
	c.pendingTx = tx
	return nil
}

// commit stamps tx's pending version with the coordinator-issued order and
// links it as the new committed head. Returns false when tx holds no pending
// version here (e.g. it was already rolled back).
func (c *chain) commit(tx, order uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil || c.pendingTx != tx {
		return false
	}
	v := c.pending
	v.order = order
	v.next.Store(c.head.Load())
	c.head.Store(v)
	c.pending = nil
	c.pendingTx = 0
	return true
}

// rollback discards tx's pending version. Idempotent.
func (c *chain) rollback(tx uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && c.pendingTx == tx {
		c.pending = nil
		c.pendingTx = 0
	}
}

// conflicts reports whether a transaction other than tx committed a version
// after readOrder. The head is always the highest committed order, so
// checking it alone is sufficient.
func (c *chain) conflicts(readOrder, tx uint64) (*version, bool) {
	h := c.head.Load()
	if h != nil && h.createdBy != tx && h.order > readOrder {
		return h, true
	}
	return nil, false
}

// prune drops committed versions strictly below horizon that are shadowed by
// a newer committed version, keeping exactly the newest version at or below
// horizon (snapshots at the horizon still need it) plus everything above.
// Returns the number of versions removed and whether the chain ended up with
// no state worth keeping (keeper is a tombstone or expired version that no
// active snapshot distinguishes from an absent entry).
func (c *chain) prune(horizon uint64, now time.Time) (removed int, dead bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keeper := c.head.Load()
	for keeper != nil && keeper.order > horizon {
		keeper = keeper.next.Load()
	}
	if keeper == nil {
		return 0, false
	}
	for v := keeper.next.Load(); v != nil; v = v.next.Load() {
		removed++
	}
	keeper.next.Store(nil)

	if c.pending == nil && c.head.Load() == keeper && (keeper.tombstone || keeper.expired(now)) {
		c.head.Store(nil)
		removed++
		dead = true
	}
	return removed, dead
}

func (c *chain) hasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// newestOrder returns the commit order of the newest committed version, or 0.
func (c *chain) newestOrder() uint64 {
	if h := c.head.Load(); h != nil {
		return h.order
	}
	return 0
}

// markRemoved flags the chain as evicted so racing readers and writers that
// still hold the old pointer fail with ErrEntryRemoved and re-fetch.
// Caller must hold c.mu.
func (c *chain) markRemoved() { c.removed.Store(true) }
