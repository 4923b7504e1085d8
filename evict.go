package ignite

import (
	"context"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// evictor ranks entries for replacement. Re-inserting a key on every access
// keeps the map in access order, so iteration starts at the coldest entry.
// Ranking is advisory only; safety checks live in store.evict.
type evictor struct {
	mu    sync.Mutex
	order *linkedhashmap.Map // key -> struct{}; front = coldest
}

func newEvictor() *evictor { return &evictor{order: linkedhashmap.New()} }

func (e *evictor) touch(key string) {
	e.mu.Lock()
	e.order.Remove(key)
	e.order.Put(key, struct{}{})
	e.mu.Unlock()
}

func (e *evictor) forget(key string) {
	e.mu.Lock()
	e.order.Remove(key)
	e.mu.Unlock()
}

// coldest returns up to n least-recently-touched keys.
func (e *evictor) coldest(n int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, n)
	it := e.order.Iterator()
	for it.Next() && len(out) < n {
		out = append(out, it.Key().(string))
	}
	return out
}

// Touch records an access for eviction ranking. Never blocks on chain or
// coordinator state.
func (s *store) Touch(key string) { s.evictor.touch(key) }

// Evict attempts to drop the entry's current visible state entirely.
// Returns false, never an error, when eviction would be unsafe: a pending
// write pins the entry, and no removal may hide a version an active snapshot
// could still read. Tombstoned and expired heads are reclaimable as soon as
// the oldest watermark covers them (every active snapshot then reads the
// entry as absent anyway); a live head additionally needs full quiescence.
func (s *store) Evict(ctx context.Context, key string) bool {
	return s.evict(ctx, key, "manual")
}

func (s *store) evict(ctx context.Context, key, reason string) bool {
	if s.closed.Load() {
		return false
	}
	s.mu.Lock()
	ch := s.entries[key]
	if ch == nil {
		s.mu.Unlock()
		return false
	}

	ch.mu.Lock()
	removable := false
	if ch.pending == nil {
		if h := ch.head.Load(); h == nil {
			// Created by a write that rolled back; nothing to lose.
			removable = true
			ch.markRemoved()
		} else {
			// Decide and mark under the coordinator lock so no transaction
			// begins between the safety check and the removal.
			now := time.Now()
			removable = s.coord.observe(func(watermark uint64, active int) bool {
				// A snapshot that cannot see the head has a read order below
				// it, so watermark >= head order means every active snapshot
				// reads exactly the head state.
				covered := watermark >= h.order
				switch {
				case h.tombstone:
					reason = "tombstone"
				case h.expired(now):
					reason = "expired"
				default:
					// A live value is gone for good once evicted; require
					// full quiescence on top of watermark coverage.
					covered = covered && active == 0
				}
				if covered {
					ch.markRemoved()
				}
				return covered
			})
		}
	}
	if !removable {
		ch.mu.Unlock()
		s.mu.Unlock()
		return false
	}
	ch.mu.Unlock()

	delete(s.entries, key)
	s.keys.Delete(key)
	s.mu.Unlock()
	s.evictor.forget(key)

	s.stats.evicted.Add(1)
	s.hooks.EntryEvicted(key, reason)
	s.invalidateNear(ctx, key)
	s.log.Debug("entry evicted", Fields{"key": key, "reason": reason})
	return true
}

func (s *store) invalidateNear(ctx context.Context, key string) {
	if s.nearc == nil {
		return
	}
	if _, err := s.revs.Bump(ctx, key); err != nil {
		s.hooks.RevError(key, err)
	}
	_ = s.nearc.Del(ctx, s.nearKey(key))
}

// PruneAll sweeps every chain with the coordinator's oldest watermark as
// horizon. Safe to run concurrently with reads and writes: it only removes
// versions shadowed below the horizon, which no active or future snapshot
// can reach. Chains left with nothing but a dead tombstone are dropped.
func (s *store) PruneAll(ctx context.Context) {
	if s.closed.Load() {
		return
	}
	horizon := s.coord.oldestWatermark()
	now := time.Now()

	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	chains := make([]*chain, 0, len(s.entries))
	for k, ch := range s.entries {
		keys = append(keys, k)
		chains = append(chains, ch)
	}
	s.mu.RUnlock()

	removed := 0
	for i, ch := range chains {
		n, dead := ch.prune(horizon, now)
		removed += n
		if dead {
			s.dropDead(ctx, keys[i], ch)
		}
	}
	if removed > 0 {
		s.stats.pruned.Add(uint64(removed))
		s.hooks.VersionsPruned(horizon, removed)
		s.log.Debug("prune sweep done", Fields{"horizon": horizon, "removed": removed})
	}
}

// dropDead unlinks a chain that prune emptied, unless a writer revived it
// in the meantime.
func (s *store) dropDead(ctx context.Context, key string, ch *chain) {
	s.mu.Lock()
	if s.entries[key] != ch {
		s.mu.Unlock()
		return
	}
	ch.mu.Lock()
	if ch.pending != nil || ch.head.Load() != nil {
		ch.mu.Unlock()
		s.mu.Unlock()
		return
	}
	ch.markRemoved()
	ch.mu.Unlock()
	delete(s.entries, key)
	s.keys.Delete(key)
	s.mu.Unlock()
	s.evictor.forget(key)
	s.invalidateNear(ctx, key)
}

// enforceCapacity evicts coldest entries while over MaxEntries. Best effort:
// entries pinned by pending writes or visible to active snapshots survive
// until the next sweep.
func (s *store) enforceCapacity(ctx context.Context) {
	if s.maxEntries <= 0 {
		return
	}
	s.mu.RLock()
	over := len(s.entries) - s.maxEntries
	s.mu.RUnlock()
	if over <= 0 {
		return
	}
	for _, key := range s.evictor.coldest(over) {
		s.evict(ctx, key, "capacity")
	}
}
