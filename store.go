package ignite

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/btree"

	"github.com/slukyano/ignite/affinity"
	"github.com/slukyano/ignite/internal/wire"
	"github.com/slukyano/ignite/near"
	"github.com/slukyano/ignite/rev"
)

const (
	defaultMaxTxKeys     = 65536
	defaultPruneInterval = 30 * time.Second
	defaultRevRetention  = 24 * time.Hour
	btreeDegree          = 32
)

type store struct {
	name  string
	log   Logger
	hooks Hooks
	topo  affinity.Topology

	coord *coordinator

	// commitMu makes conflict-check + apply one atomic unit across keys.
	// Reads and non-committing writers never take it.
	commitMu sync.Mutex

	mu      sync.RWMutex // guards entries and keys
	entries map[string]*chain
	keys    *btree.BTreeG[string]

	nearc  near.Provider
	revs   rev.Store
	ownRev bool // revs built by New; closed with the store

	evictor *evictor

	defaultTTL    time.Duration
	maxTxKeys     int
	maxEntries    int
	pruneInterval time.Duration

	stats statsCounters

	closed    atomic.Bool
	ticker    *time.Ticker
	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
}

type statsCounters struct {
	begun      atomic.Uint64
	committed  atomic.Uint64
	rolledBack atomic.Uint64
	conflicts  atomic.Uint64
	evicted    atomic.Uint64
	pruned     atomic.Uint64
}

// Stats is a point-in-time counter snapshot for diagnostics.
type Stats struct {
	Begun              uint64
	Committed          uint64
	RolledBack         uint64
	Conflicts          uint64
	Evicted            uint64
	PrunedVersions     uint64
	Entries            int
	ActiveTransactions int
}

func newStore(opts Options) (*store, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("ignite: name is required")
	}

	s := &store{
		name:    opts.Name,
		coord:   newCoordinator(),
		entries: make(map[string]*chain),
		keys:    btree.NewG[string](btreeDegree, func(a, b string) bool { return a < b }),
		nearc:   opts.Near,
		revs:    opts.Revs,
		evictor: newEvictor(),
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.topo = coalesce[affinity.Topology](opts.Topology, affinity.Local{})
	s.maxTxKeys = coalesce[int](opts.MaxTxKeys, defaultMaxTxKeys)
	s.pruneInterval = coalesce[time.Duration](opts.PruneInterval, defaultPruneInterval)
	s.defaultTTL = opts.DefaultTTL
	s.maxEntries = opts.MaxEntries

	if s.nearc != nil && s.revs == nil {
		retention := coalesce[time.Duration](opts.RevRetention, defaultRevRetention)
		s.revs = rev.NewLocal(s.pruneInterval, retention)
		s.ownRev = true
	}

	s.ticker = time.NewTicker(s.pruneInterval)
	s.stopCh = make(chan struct{})
	s.closeWg.Add(1)
	go s.sweepLoop()

	return s, nil
}

func (s *store) sweepLoop() {
	defer s.closeWg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.PruneAll(context.Background())
			s.enforceCapacity(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

func (s *store) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
		s.closeWg.Wait()
		s.ticker.Stop()
	})
	var err error
	if s.nearc != nil {
		err = s.nearc.Close(ctx)
	}
	if s.ownRev && s.revs != nil {
		if cerr := s.revs.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

// Begin starts a transaction with a fresh snapshot.
func (s *store) Begin() (*Txn, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	id, snap := s.coord.begin()
	s.stats.begun.Add(1)
	return &Txn{s: s, id: id, snap: snap, writes: make(map[string]pendingWrite)}, nil
}

// Snapshot returns a read-only snapshot not tied to any transaction.
func (s *store) Snapshot() Snapshot { return s.coord.snapshot() }

func (s *store) ActiveTransactionCount() int { return s.coord.activeCount() }

// WaitQuiesce blocks until no transactions are active, for drain-before-
// teardown flows.
func (s *store) WaitQuiesce(ctx context.Context) error { return s.coord.waitQuiesce(ctx) }

func (s *store) Stats() Stats {
	s.mu.RLock()
	entries := len(s.entries)
	s.mu.RUnlock()
	return Stats{
		Begun:              s.stats.begun.Load(),
		Committed:          s.stats.committed.Load(),
		RolledBack:         s.stats.rolledBack.Load(),
		Conflicts:          s.stats.conflicts.Load(),
		Evicted:            s.stats.evicted.Load(),
		PrunedVersions:     s.stats.pruned.Load(),
		Entries:            entries,
		ActiveTransactions: s.coord.activeCount(),
	}
}

// Get reads a key through the given snapshot. The near cache answers first
// when its record is valid for the snapshot; otherwise the version chain is
// walked and the near cache refreshed.
func (s *store) Get(ctx context.Context, key string, snap Snapshot) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	s.evictor.touch(key)

	if s.nearc != nil {
		if v, ok := s.nearGet(ctx, key, snap); ok {
			return v, true, nil
		}
	}

	// Observe the revision before the authoritative read; nearSet skips the
	// write if a commit moved it in between.
	var obsRev uint64
	populate := s.nearc != nil
	if populate {
		r, err := s.revs.Snapshot(ctx, key)
		if err != nil {
			s.hooks.RevError(key, err)
			populate = false
		}
		obsRev = r
	}

	for attempt := 0; ; attempt++ {
		ch := s.lookup(key)
		if ch == nil {
			return nil, false, nil
		}
		v, err := ch.readVersion(snap)
		if err != nil {
			if attempt == 0 {
				continue // entry raced eviction; re-fetch once
			}
			return nil, false, err
		}
		if v == nil || v.tombstone || v.expired(time.Now()) {
			return nil, false, nil
		}
		if populate {
			s.nearSet(ctx, key, obsRev, ch, v)
		}
		return v.value, true, nil
	}
}

func (s *store) lookup(key string) *chain {
	s.mu.RLock()
	ch := s.entries[key]
	s.mu.RUnlock()
	return ch
}

func (s *store) getOrCreate(key string) *chain {
	if ch := s.lookup(key); ch != nil {
		return ch
	}
	s.mu.Lock()
	ch := s.entries[key]
	if ch == nil {
		ch = newChain()
		s.entries[key] = ch
		s.keys.ReplaceOrInsert(key)
	}
	s.mu.Unlock()
	s.evictor.touch(key)
	return ch
}

// beginWrite installs a pending version, re-fetching the chain once if it
// was concurrently evicted between lookup and lock.
func (s *store) beginWrite(key string, tx uint64, value []byte, tombstone bool, expireAt time.Time) error {
	for attempt := 0; attempt < 2; attempt++ {
		ch := s.getOrCreate(key)
		err := ch.beginWrite(tx, value, tombstone, expireAt)
		if err != ErrEntryRemoved {
			return err
		}
	}
	return ErrEntryRemoved
}

// afterCommit runs per touched key once its version is published: refresh
// eviction ranking and invalidate near caches via a revision bump.
func (s *store) afterCommit(ctx context.Context, key string) {
	s.evictor.touch(key)
	if s.nearc == nil {
		return
	}
	if _, err := s.revs.Bump(ctx, key); err != nil {
		s.hooks.RevError(key, err)
		s.log.Warn("rev bump failed; near caches may serve until record TTL", Fields{"key": key, "err": err})
	}
	_ = s.nearc.Del(ctx, s.nearKey(key))
}

func (s *store) defaultExpiry() time.Time {
	if s.defaultTTL <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.defaultTTL)
}

func (s *store) nearKey(key string) string { return "near:" + s.name + ":" + key }

// nearGet returns a near-cache hit valid for snap. Stale, corrupt or expired
// records are deleted (self-heal); any miss falls back to the chains.
func (s *store) nearGet(ctx context.Context, key string, snap Snapshot) ([]byte, bool) {
	k := s.nearKey(key)
	raw, ok, err := s.nearc.Get(ctx, k)
	if err != nil || !ok {
		return nil, false
	}
	rec, err := wire.DecodeNear(raw)
	if err != nil {
		_ = s.nearc.Del(ctx, k) // self-heal corrupt
		s.hooks.NearSelfHeal(key, "corrupt")
		return nil, false
	}
	cur, err := s.revs.Snapshot(ctx, key)
	if err != nil {
		s.hooks.RevError(key, err)
		return nil, false
	}
	if rec.Rev != cur {
		_ = s.nearc.Del(ctx, k)
		s.hooks.NearSelfHeal(key, "rev_mismatch")
		return nil, false
	}
	if rec.ExpireAt != 0 && time.Now().UnixNano() > rec.ExpireAt {
		_ = s.nearc.Del(ctx, k)
		s.hooks.NearSelfHeal(key, "expired")
		return nil, false
	}
	// The record is the latest committed state; it answers snap only if that
	// state is visible to snap.
	if rec.Order > snap.ReadOrder || snap.activeAt(rec.Tx) {
		return nil, false
	}
	return rec.Payload, true
}

// nearSet caches v iff it is still the newest committed version and no
// commit raced the read (revision unchanged since obsRev).
func (s *store) nearSet(ctx context.Context, key string, obsRev uint64, ch *chain, v *version) {
	if ch.head.Load() != v {
		return // older version visible to an old snapshot; not near material
	}
	cur, err := s.revs.Snapshot(ctx, key)
	if err != nil || cur != obsRev {
		return // revision moved; skip stale write
	}
	var exp int64
	var ttl time.Duration
	if !v.expireAt.IsZero() {
		exp = v.expireAt.UnixNano()
		ttl = time.Until(v.expireAt)
		if ttl <= 0 {
			return
		}
	}
	b := wire.EncodeNear(wire.NearRecord{
		Rev:      obsRev,
		Order:    v.order,
		Tx:       v.createdBy,
		ExpireAt: exp,
		Payload:  v.value,
	})
	ok, err := s.nearc.Set(ctx, s.nearKey(key), b, int64(len(b)), ttl)
	if err == nil && !ok {
		s.hooks.NearSetRejected(key)
	}
}
