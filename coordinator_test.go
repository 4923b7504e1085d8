package ignite

import (
	"context"
	"testing"
	"time"
)

func TestCoordinatorIdsAndOrders(t *testing.T) {
	c := newCoordinator()

	id1, s1 := c.begin()
	id2, s2 := c.begin()
	if id2 <= id1 {
		t.Fatalf("ids not increasing: %d then %d", id1, id2)
	}
	if s1.ReadOrder != 0 || s2.ReadOrder != 0 {
		t.Fatalf("read orders before any commit: %d, %d", s1.ReadOrder, s2.ReadOrder)
	}
	if !s2.activeAt(id1) {
		t.Fatalf("second snapshot should list the first tx active")
	}
	if s2.activeAt(id2) {
		t.Fatalf("a snapshot never lists its owner active")
	}

	o1 := c.prepareCommit()
	o2 := c.prepareCommit()
	if o2 != o1+1 {
		t.Fatalf("commit orders not consecutive: %d then %d", o1, o2)
	}

	c.finish(id1)
	c.finish(id1) // idempotent
	c.finish(id2)
	if c.activeCount() != 0 {
		t.Fatalf("active count %d after finish", c.activeCount())
	}
}

func TestCoordinatorWatermark(t *testing.T) {
	c := newCoordinator()

	// Idle: watermark tracks the commit high mark.
	c.prepareCommit()
	c.prepareCommit()
	if w := c.oldestWatermark(); w != 2 {
		t.Fatalf("idle watermark = %d, want 2", w)
	}

	idOld, _ := c.begin() // snapshot at order 2
	c.prepareCommit()
	idNew, _ := c.begin() // snapshot at order 3

	if w := c.oldestWatermark(); w != 2 {
		t.Fatalf("watermark = %d, want oldest snapshot order 2", w)
	}
	c.finish(idOld)
	if w := c.oldestWatermark(); w != 3 {
		t.Fatalf("watermark after oldest finished = %d, want 3", w)
	}
	c.finish(idNew)
	if w := c.oldestWatermark(); w != 3 {
		t.Fatalf("idle watermark = %d, want 3", w)
	}
}

func TestCoordinatorWaitQuiesce(t *testing.T) {
	c := newCoordinator()
	if err := c.waitQuiesce(context.Background()); err != nil {
		t.Fatalf("idle waitQuiesce: %v", err)
	}

	id, _ := c.begin()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := c.waitQuiesce(ctx); err != context.DeadlineExceeded {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.waitQuiesce(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	c.finish(id)
	if err := <-done; err != nil {
		t.Fatalf("waitQuiesce after drain: %v", err)
	}
}
