package rev

import (
	"context"
	"testing"
	"time"
)

func TestLocalBumpAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if g, err := s.Snapshot(ctx, "a"); err != nil || g != 0 {
		t.Fatalf("fresh key: g=%d err=%v", g, err)
	}
	if g, err := s.Bump(ctx, "a"); err != nil || g != 1 {
		t.Fatalf("first bump: g=%d err=%v", g, err)
	}
	if g, err := s.Bump(ctx, "a"); err != nil || g != 2 {
		t.Fatalf("second bump: g=%d err=%v", g, err)
	}
	if g, err := s.Snapshot(ctx, "a"); err != nil || g != 2 {
		t.Fatalf("snapshot after bumps: g=%d err=%v", g, err)
	}
	// Keys are independent.
	if g, err := s.Snapshot(ctx, "b"); err != nil || g != 0 {
		t.Fatalf("untouched key: g=%d err=%v", g, err)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, time.Second) // retention=1s, no background loop
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1200 * time.Millisecond)
	s.Cleanup(time.Second)

	g, err := s.Snapshot(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
}

func TestLocalCleanupKeepsFresh(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	s.Cleanup(time.Hour)
	if g, _ := s.Snapshot(ctx, "k"); g != 1 {
		t.Fatalf("fresh entry pruned: g=%d", g)
	}
	// Zero retention disables cleanup entirely.
	s.Cleanup(0)
	if g, _ := s.Snapshot(ctx, "k"); g != 1 {
		t.Fatalf("zero-retention cleanup pruned: g=%d", g)
	}
}

func TestLocalCloseStopsLoop(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(10*time.Millisecond, time.Hour)
	if _, err := s.Bump(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close again is not supported; one Close must be enough and clean.
}
