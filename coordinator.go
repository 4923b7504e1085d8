package ignite

import (
	"context"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// Snapshot is a consistent point-in-time view handed out by the coordinator.
// A reader sees every version committed at or below ReadOrder except those
// created by transactions that were still active when the snapshot was taken.
type Snapshot struct {
	// ReadOrder is the commit-order high mark at snapshot time.
	ReadOrder uint64
	// Owner is the transaction the snapshot belongs to; 0 for plain reads.
	Owner uint64

	active map[uint64]struct{} // transactions in flight at snapshot time
}

// activeAt reports whether tx was active when the snapshot was taken. The
// owning transaction always sees its own writes.
func (s Snapshot) activeAt(tx uint64) bool {
	if tx == s.Owner {
		return false
	}
	_, ok := s.active[tx]
	return ok
}

// coordinator is the single in-process sequencer: it issues strictly
// increasing transaction ids and commit orders, owns the active-transaction
// registry and answers watermark queries for eviction. All state is one
// atomically updated unit under mu; critical sections are a counter bump
// plus a set update.
type coordinator struct {
	mu         sync.Mutex
	nextTx     uint64
	commitHigh uint64

	// active maps transaction id -> snapshot read order. Ids are issued in
	// increasing order, so the leftmost entry carries the oldest watermark.
	active *treemap.Map

	waiters []chan struct{} // closed when the active set drains
}

func newCoordinator() *coordinator {
	return &coordinator{active: treemap.NewWith(utils.UInt64Comparator)}
}

// begin registers a new transaction and returns its id and snapshot.
func (c *coordinator) begin() (uint64, Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextTx++
	id := c.nextTx
	snap := Snapshot{
		ReadOrder: c.commitHigh,
		Owner:     id,
		active:    c.activeSetLocked(),
	}
	c.active.Put(id, c.commitHigh)
	return id, snap
}

// snapshot returns a read-only snapshot not tied to any transaction.
func (c *coordinator) snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{ReadOrder: c.commitHigh, active: c.activeSetLocked()}
}

func (c *coordinator) activeSetLocked() map[uint64]struct{} {
	out := make(map[uint64]struct{}, c.active.Size())
	it := c.active.Iterator()
	for it.Next() {
		out[it.Key().(uint64)] = struct{}{}
	}
	return out
}

// prepareCommit allocates the next commit order.
func (c *coordinator) prepareCommit() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitHigh++
	return c.commitHigh
}

// finish removes tx from the active set and wakes drain waiters once the set
// is empty. Idempotent.
func (c *coordinator) finish(tx uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active.Remove(tx)
	if c.active.Empty() && len(c.waiters) > 0 {
		for _, ch := range c.waiters {
			close(ch)
		}
		c.waiters = nil
	}
}

// oldestWatermark is the pruning horizon: the minimum snapshot read order
// among active transactions, or the commit-order high mark when idle. No
// version at or below a still-newer order than this can be seen by anyone.
func (c *coordinator) oldestWatermark() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.Empty() {
		return c.commitHigh
	}
	_, v := c.active.Min()
	return v.(uint64)
}

// observe runs fn under the coordinator lock with a consistent view of the
// oldest watermark and the active count; no transaction can begin or finish
// until fn returns. Eviction uses it to decide and mark a removal without a
// begin racing in between.
func (c *coordinator) observe(fn func(watermark uint64, active int) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.commitHigh
	if !c.active.Empty() {
		_, v := c.active.Min()
		w = v.(uint64)
	}
	return fn(w, c.active.Size())
}

func (c *coordinator) activeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active.Size()
}

// waitQuiesce blocks until no transactions are active or ctx is done.
func (c *coordinator) waitQuiesce(ctx context.Context) error {
	c.mu.Lock()
	if c.active.Empty() {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
