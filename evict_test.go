package ignite

import (
	"context"
	"testing"
	"time"
)

func TestEvictPendingWritePins(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, nil)

	tx := mustBegin(t, st)
	defer tx.Rollback()
	if err := tx.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if st.Evict(ctx, "k") {
		t.Fatalf("entry with a pending write must not be evictable")
	}
}

func TestEvictLiveValueNeedsQuiescence(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, nil)

	commitPut(t, st, "k", "v")

	reader := mustBegin(t, st)
	if st.Evict(ctx, "k") {
		t.Fatalf("live value with an active snapshot must not be evictable")
	}
	reader.Rollback()

	if !st.Evict(ctx, "k") {
		t.Fatalf("live value should evict once nothing is in flight")
	}
	if _, ok, _ := st.Get(ctx, "k", st.Snapshot()); ok {
		t.Fatalf("evicted entry still readable")
	}
	if st.Stats().Evicted != 1 {
		t.Fatalf("evicted counter = %d, want 1", st.Stats().Evicted)
	}
}

// TestEvictTombstoneWaitsForOldSnapshots pins the non-repeatable-read hazard:
// a reader whose snapshot predates the tombstone must keep its value until it
// finishes, even though the head itself reads as absent.
func TestEvictTombstoneWaitsForOldSnapshots(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, nil)

	commitPut(t, st, "k", "v1")

	reader := mustBegin(t, st)
	if got, ok, _ := reader.Get(ctx, "k"); !ok || string(got) != "v1" {
		t.Fatalf("reader first read: ok=%v got=%q", ok, got)
	}

	tx := mustBegin(t, st)
	if err := tx.Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if st.Evict(ctx, "k") {
		t.Fatalf("tombstone must not evict while an older snapshot can see below it")
	}
	if got, ok, _ := reader.Get(ctx, "k"); !ok || string(got) != "v1" {
		t.Fatalf("reader re-read after evict attempt: ok=%v got=%q, want v1", ok, got)
	}
	reader.Rollback()

	// With the old snapshot gone, the watermark covers the tombstone.
	if !st.Evict(ctx, "k") {
		t.Fatalf("tombstone should evict once old snapshots drain")
	}
}

// TestEvictTombstoneCoveredByWatermark is the safe side of the same rule:
// readers that began after the tombstone see the entry as absent either way,
// so they do not block eviction.
func TestEvictTombstoneCoveredByWatermark(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, nil)

	commitPut(t, st, "k", "v")
	tx := mustBegin(t, st)
	if err := tx.Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reader := mustBegin(t, st)
	defer reader.Rollback()
	if !st.Evict(ctx, "k") {
		t.Fatalf("tombstone covered by the watermark should evict despite active readers")
	}
	if _, ok, _ := reader.Get(ctx, "k"); ok {
		t.Fatalf("post-tombstone snapshot read a value")
	}
}

func TestEvictMissingKey(t *testing.T) {
	st := newTestStore(t, nil)
	if st.Evict(context.Background(), "nope") {
		t.Fatalf("evicting an absent key should report false")
	}
}

func TestWriteAfterEvictRecreates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, nil)

	commitPut(t, st, "k", "v1")
	if !st.Evict(ctx, "k") {
		t.Fatalf("evict failed")
	}
	// The key is fully writable again; the retry path re-fetches the chain.
	commitPut(t, st, "k", "v2")
	if got, ok, _ := st.Get(ctx, "k", st.Snapshot()); !ok || string(got) != "v2" {
		t.Fatalf("rewrite after evict: ok=%v got=%q", ok, got)
	}
}

func TestPruneAllRespectsActiveSnapshots(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, nil)

	commitPut(t, st, "k", "old")
	reader := mustBegin(t, st)

	commitPut(t, st, "k", "mid")
	commitPut(t, st, "k", "new")

	st.PruneAll(ctx)

	// reader's version survives; everything it cannot see may go.
	if got, ok, _ := reader.Get(ctx, "k"); !ok || string(got) != "old" {
		t.Fatalf("active snapshot lost its version: ok=%v got=%q", ok, got)
	}
	reader.Rollback()

	// With nothing in flight, the horizon moves to the head and the older
	// versions are reclaimed.
	st.PruneAll(ctx)
	if st.Stats().PrunedVersions == 0 {
		t.Fatalf("expected pruned versions after quiescence")
	}
	if got, ok, _ := st.Get(ctx, "k", st.Snapshot()); !ok || string(got) != "new" {
		t.Fatalf("head lost by prune: ok=%v got=%q", ok, got)
	}
}

func TestPruneAllDropsDeadTombstones(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, nil)

	commitPut(t, st, "k", "v")
	tx := mustBegin(t, st)
	if err := tx.Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	st.PruneAll(ctx)
	if n := st.Stats().Entries; n != 0 {
		t.Fatalf("dead tombstone entry survived prune: entries=%d", n)
	}
}

func TestEnforceCapacityEvictsColdest(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, func(o *Options) { o.MaxEntries = 2 })
	impl := mustImpl(t, st)

	commitPut(t, st, "a", "1")
	commitPut(t, st, "b", "2")
	commitPut(t, st, "c", "3")

	// Heat up a and c; b is the coldest.
	st.Touch("a")
	st.Touch("c")

	impl.enforceCapacity(ctx)

	if _, ok, _ := st.Get(ctx, "b", st.Snapshot()); ok {
		t.Fatalf("coldest entry should have been evicted")
	}
	if got := st.Stats().Entries; got != 2 {
		t.Fatalf("entries = %d, want 2", got)
	}
	for _, k := range []string{"a", "c"} {
		if _, ok, _ := st.Get(ctx, k, st.Snapshot()); !ok {
			t.Fatalf("hot entry %q evicted", k)
		}
	}
}

// TestEvictExpiredHeadWaitsForOldSnapshots mirrors the tombstone rule for
// TTL: an expired head hides nothing from new readers, but an older snapshot
// still reading the previous version pins the chain.
func TestEvictExpiredHeadWaitsForOldSnapshots(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, nil)

	commitPut(t, st, "k", "v1")

	reader := mustBegin(t, st)
	if got, ok, _ := reader.Get(ctx, "k"); !ok || string(got) != "v1" {
		t.Fatalf("reader first read: ok=%v got=%q", ok, got)
	}

	tx := mustBegin(t, st)
	if err := tx.PutWithTTL("k", []byte("v2"), 20*time.Millisecond); err != nil {
		t.Fatalf("PutWithTTL: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	if st.Evict(ctx, "k") {
		t.Fatalf("expired head must not evict while an older snapshot can see below it")
	}
	if got, ok, _ := reader.Get(ctx, "k"); !ok || string(got) != "v1" {
		t.Fatalf("reader re-read after evict attempt: ok=%v got=%q, want v1", ok, got)
	}
	reader.Rollback()

	if !st.Evict(ctx, "k") {
		t.Fatalf("expired head should evict once old snapshots drain")
	}
}

// TestEvictExpiredHeadCoveredByWatermark: a sole expired version blocks
// nobody; readers that began after it read absent with or without the entry.
func TestEvictExpiredHeadCoveredByWatermark(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, nil)

	tx := mustBegin(t, st)
	if err := tx.PutWithTTL("k", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatalf("PutWithTTL: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reader := mustBegin(t, st)
	defer reader.Rollback()

	time.Sleep(40 * time.Millisecond)
	if !st.Evict(ctx, "k") {
		t.Fatalf("expired entry covered by the watermark should evict despite active snapshots")
	}
}
