package ignite

import (
	"testing"
	"time"
)

func snapAt(order uint64, owner uint64, active ...uint64) Snapshot {
	s := Snapshot{ReadOrder: order, Owner: owner, active: make(map[uint64]struct{}, len(active))}
	for _, tx := range active {
		s.active[tx] = struct{}{}
	}
	return s
}

func mustCommit(t *testing.T, c *chain, tx, order uint64, val string) {
	t.Helper()
	if err := c.beginWrite(tx, []byte(val), false, time.Time{}); err != nil {
		t.Fatalf("beginWrite tx=%d: %v", tx, err)
	}
	if !c.commit(tx, order) {
		t.Fatalf("commit tx=%d order=%d returned false", tx, order)
	}
}

func TestChainVisibility(t *testing.T) {
	c := newChain()
	mustCommit(t, c, 1, 10, "v10")
	mustCommit(t, c, 2, 20, "v20")

	cases := []struct {
		name string
		snap Snapshot
		want string
		ok   bool
	}{
		{"below all", snapAt(5, 0), "", false},
		{"at first", snapAt(10, 0), "v10", true},
		{"between", snapAt(15, 0), "v10", true},
		{"at head", snapAt(20, 0), "v20", true},
		{"above head", snapAt(99, 0), "v20", true},
		{"creator active at snap", snapAt(20, 0, 2), "v10", true},
		{"own write always visible", snapAt(20, 2, 2), "v20", true},
	}
	now := time.Now()
	for _, tc := range cases {
		got, ok, err := c.read(tc.snap, now)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if ok != tc.ok || (ok && string(got) != tc.want) {
			t.Fatalf("%s: got=%q ok=%v, want %q ok=%v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestChainPendingRules(t *testing.T) {
	c := newChain()
	if err := c.beginWrite(1, []byte("a"), false, time.Time{}); err != nil {
		t.Fatalf("beginWrite: %v", err)
	}
	// Same transaction may rewrite its pending version.
	if err := c.beginWrite(1, []byte("a2"), false, time.Time{}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	// A second transaction may not.
	if err := c.beginWrite(2, []byte("b"), false, time.Time{}); err != ErrWriteConflict {
		t.Fatalf("want ErrWriteConflict, got %v", err)
	}

	// Pending versions are invisible to everyone, including high snapshots.
	if got, ok, _ := c.read(snapAt(1000, 0), time.Now()); ok {
		t.Fatalf("pending version visible: %q", got)
	}

	c.rollback(1)
	c.rollback(1) // idempotent
	if c.hasPending() {
		t.Fatalf("pending survived rollback")
	}
	if c.commit(1, 5) {
		t.Fatalf("commit after rollback should report false")
	}
}

func TestChainConflicts(t *testing.T) {
	c := newChain()
	mustCommit(t, c, 1, 10, "v")

	if _, bad := c.conflicts(10, 2); bad {
		t.Fatalf("no conflict expected when snapshot covers the head")
	}
	v, bad := c.conflicts(5, 2)
	if !bad || v.createdBy != 1 || v.order != 10 {
		t.Fatalf("conflict expected against tx 1 order 10, got %+v bad=%v", v, bad)
	}
	// Own commit never conflicts with itself.
	if _, bad := c.conflicts(5, 1); bad {
		t.Fatalf("self conflict reported")
	}
}

func TestChainPruneKeepsHorizonVersion(t *testing.T) {
	c := newChain()
	mustCommit(t, c, 1, 10, "v10")
	mustCommit(t, c, 2, 20, "v20")
	mustCommit(t, c, 3, 30, "v30")

	// Horizon between 20 and 30: v20 is the keeper, v10 goes.
	removed, dead := c.prune(25, time.Now())
	if removed != 1 || dead {
		t.Fatalf("prune: removed=%d dead=%v, want 1 false", removed, dead)
	}
	if got, ok, _ := c.read(snapAt(25, 0), time.Now()); !ok || string(got) != "v20" {
		t.Fatalf("horizon snapshot lost its version: got=%q ok=%v", got, ok)
	}
	if got, ok, _ := c.read(snapAt(99, 0), time.Now()); !ok || string(got) != "v30" {
		t.Fatalf("head lost: got=%q ok=%v", got, ok)
	}

	// Horizon below everything: nothing to do.
	if removed, _ := c.prune(5, time.Now()); removed != 0 {
		t.Fatalf("prune below all removed %d", removed)
	}
}

func TestChainPruneDeadTombstone(t *testing.T) {
	c := newChain()
	mustCommit(t, c, 1, 10, "v")
	if err := c.beginWrite(2, nil, true, time.Time{}); err != nil {
		t.Fatalf("beginWrite tombstone: %v", err)
	}
	if !c.commit(2, 20) {
		t.Fatalf("commit tombstone failed")
	}

	removed, dead := c.prune(20, time.Now())
	if !dead || removed != 2 {
		t.Fatalf("tombstone chain should die: removed=%d dead=%v", removed, dead)
	}
	if c.head.Load() != nil {
		t.Fatalf("dead chain kept a head")
	}
}

func TestChainPruneSparesPendingWriter(t *testing.T) {
	c := newChain()
	if err := c.beginWrite(1, nil, true, time.Time{}); err != nil {
		t.Fatalf("beginWrite: %v", err)
	}
	if !c.commit(1, 10) {
		t.Fatalf("commit failed")
	}
	if err := c.beginWrite(2, []byte("revive"), false, time.Time{}); err != nil {
		t.Fatalf("beginWrite revive: %v", err)
	}

	// Tombstone at the horizon, but a pending writer pins the chain.
	if _, dead := c.prune(10, time.Now()); dead {
		t.Fatalf("chain with pending write reported dead")
	}
	if !c.commit(2, 20) {
		t.Fatalf("revive commit failed")
	}
	if got, ok, _ := c.read(snapAt(20, 0), time.Now()); !ok || string(got) != "revive" {
		t.Fatalf("revived value lost: got=%q ok=%v", got, ok)
	}
}

func TestChainRemovedReads(t *testing.T) {
	c := newChain()
	mustCommit(t, c, 1, 10, "v")
	c.mu.Lock()
	c.markRemoved()
	c.mu.Unlock()

	if _, err := c.readVersion(snapAt(99, 0)); err != ErrEntryRemoved {
		t.Fatalf("want ErrEntryRemoved, got %v", err)
	}
	if err := c.beginWrite(2, []byte("x"), false, time.Time{}); err != ErrEntryRemoved {
		t.Fatalf("write to removed chain: want ErrEntryRemoved, got %v", err)
	}
}
