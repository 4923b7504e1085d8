package ignite

import (
	"context"
	"sync"
	"time"
)

type txState uint8

const (
	txActive txState = iota
	txCommitting
	txCommitted
	txRolledBack
)

// pendingWrite is a transaction's staged intent for one key. The pending
// version itself lives on the key's chain; this record keeps the touched-key
// set and lets the transaction read its own writes.
type pendingWrite struct {
	value     []byte
	tombstone bool
	expireAt  time.Time
}

// Txn is a single transaction. It is NOT safe for concurrent use; run one
// goroutine per transaction, the store handles cross-transaction safety.
type Txn struct {
	s    *store
	id   uint64
	snap Snapshot

	mu           sync.Mutex
	state        txState
	rollbackOnly bool
	writes       map[string]pendingWrite
}

// ID returns the coordinator-issued transaction id.
func (t *Txn) ID() uint64 { return t.id }

// Snapshot returns the point-in-time view the transaction reads through.
func (t *Txn) Snapshot() Snapshot { return t.snap }

// Get reads a key through the transaction's snapshot, seeing the
// transaction's own staged writes first.
func (t *Txn) Get(ctx context.Context, key string) ([]byte, bool, error) {
	t.mu.Lock()
	if t.state != txActive {
		t.mu.Unlock()
		return nil, false, ErrTxFinished
	}
	if w, ok := t.writes[key]; ok {
		t.mu.Unlock()
		if w.tombstone {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	t.mu.Unlock()
	return t.s.Get(ctx, key, t.snap)
}

// Put stages a write with the store's default TTL.
func (t *Txn) Put(key string, value []byte) error {
	return t.write(key, value, false, t.s.defaultExpiry())
}

// PutWithTTL stages a write that expires after ttl. ttl <= 0 means no expiry.
func (t *Txn) PutWithTTL(key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	return t.write(key, value, false, exp)
}

// Remove stages a delete (tombstone).
func (t *Txn) Remove(key string) error {
	return t.write(key, nil, true, time.Time{})
}

func (t *Txn) write(key string, value []byte, tombstone bool, expireAt time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.state != txActive:
		return ErrTxFinished
	case t.rollbackOnly:
		return ErrTxRollbackOnly
	}

	if _, tracked := t.writes[key]; !tracked && len(t.writes) >= t.s.maxTxKeys {
		// Hard abort: bound the memory pinned by pending versions.
		t.s.hooks.TxForceAborted(t.id, len(t.writes))
		t.s.log.Warn("transaction force-rolled-back over tracked-key limit",
			Fields{"tx": t.id, "keys": len(t.writes), "limit": t.s.maxTxKeys})
		t.rollbackLocked()
		return ErrTxTooLarge
	}

	if err := t.s.beginWrite(key, t.id, value, tombstone, expireAt); err != nil {
		return err
	}
	t.writes[key] = pendingWrite{value: value, tombstone: tombstone, expireAt: expireAt}
	return nil
}

// Commit validates the transaction against concurrent commits and publishes
// its writes under a single commit order. On any conflict nothing is applied
// and the transaction rolls back; partial commits are never observable.
func (t *Txn) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.state == txCommitted, t.state == txRolledBack:
		return ErrTxFinished
	case t.rollbackOnly:
		t.rollbackLocked()
		return ErrTxRollbackOnly
	}
	t.state = txCommitting

	if len(t.writes) == 0 {
		// Read-only: nothing to validate or publish.
		t.s.coord.finish(t.id)
		t.state = txCommitted
		return nil
	}

	// Conflict check and apply are one atomic unit: the commit mutex keeps
	// another transaction from publishing to a touched key in between.
	t.s.commitMu.Lock()
	for key := range t.writes {
		ch := t.s.lookup(key)
		if ch == nil {
			continue
		}
		if v, bad := ch.conflicts(t.snap.ReadOrder, t.id); bad {
			t.s.commitMu.Unlock()
			t.s.hooks.ConflictDetected(key, v.createdBy, v.order)
			t.s.stats.conflicts.Add(1)
			t.rollbackLocked()
			return &ConflictError{
				Key:         key,
				ReadOrder:   t.snap.ReadOrder,
				CommitOrder: v.order,
				OtherTx:     v.createdBy,
			}
		}
	}

	order := t.s.coord.prepareCommit()
	for key := range t.writes {
		if ch := t.s.lookup(key); ch != nil {
			ch.commit(t.id, order)
		}
	}
	t.s.commitMu.Unlock()

	for key := range t.writes {
		t.s.afterCommit(ctx, key)
	}
	t.s.coord.finish(t.id)
	t.state = txCommitted
	t.s.stats.committed.Add(1)
	t.s.log.Debug("transaction committed", Fields{"tx": t.id, "order": order, "keys": len(t.writes)})
	return nil
}

// Rollback discards all pending versions. Safe to call multiple times and
// after a forced abort; extra calls are no-ops.
func (t *Txn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == txCommitted {
		return ErrTxFinished
	}
	if t.state == txRolledBack {
		return nil
	}
	t.rollbackLocked()
	return nil
}

// rollbackLocked discards pending versions on every touched chain and
// removes the transaction from the active set. Caller holds t.mu.
func (t *Txn) rollbackLocked() {
	for key := range t.writes {
		if ch := t.s.lookup(key); ch != nil {
			ch.rollback(t.id)
		}
	}
	t.s.coord.finish(t.id)
	t.state = txRolledBack
	t.rollbackOnly = true
	t.s.stats.rolledBack.Add(1)
}
