package ignite

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("ignite: store is closed")

	// ErrWriteConflict means another transaction already holds the pending
	// slot for the key. The caller may retry after that transaction finishes.
	ErrWriteConflict = errors.New("ignite: key has a pending write from another transaction")

	// ErrSerializationConflict means a concurrent transaction committed a
	// write to a touched key after this transaction's snapshot was taken.
	// The transaction is rolled back; the caller may retry with a fresh one.
	ErrSerializationConflict = errors.New("ignite: snapshot invalidated by a concurrent commit")

	// ErrTxTooLarge means the transaction exceeded the tracked-key bound.
	// The transaction is force-rolled-back and must not be retried as-is.
	ErrTxTooLarge = errors.New("ignite: transaction exceeds the tracked-key limit")

	// ErrTxFinished is returned when using a committed or rolled-back transaction.
	ErrTxFinished = errors.New("ignite: transaction already finished")

	// ErrTxRollbackOnly is returned on commit of a transaction that was
	// marked rollback-only by an earlier failure.
	ErrTxRollbackOnly = errors.New("ignite: transaction is rollback-only")

	// ErrReadOnlyEntry is returned by every mutating call on an EntryView.
	ErrReadOnlyEntry = errors.New("ignite: entry view does not support mutating operations")

	// ErrEntryRemoved means the entry was concurrently evicted between
	// lookup and access. Internal callers retry once; if it still fires, the
	// error surfaces and the operation is safe to repeat.
	ErrEntryRemoved = errors.New("ignite: entry was concurrently removed")
)

// ConflictError carries the details of a failed commit-time serialization check.
// It matches ErrSerializationConflict via errors.Is.
type ConflictError struct {
	Key         string
	ReadOrder   uint64 // commit-order high mark of the failed transaction's snapshot
	CommitOrder uint64 // order of the conflicting committed version
	OtherTx     uint64 // transaction that committed the conflicting version
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("ignite: conflict on %q: tx %d committed at order %d, after snapshot order %d",
		e.Key, e.OtherTx, e.CommitOrder, e.ReadOrder)
}

func (e *ConflictError) Is(target error) bool { return target == ErrSerializationConflict }
