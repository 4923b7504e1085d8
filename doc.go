// Package ignite implements a transactional in-memory key/value store with
// per-entry multiversion concurrency control (MVCC) and safe eviction.
//
// Every key owns a version chain: committed versions newest-first, plus at
// most one pending version per transaction. A coordinator issues snapshots
// (commit-order high mark + active transaction set) and strictly increasing
// commit orders; readers see exactly the versions their snapshot covers and
// never block writers. Write/write conflicts are detected at commit
// (first-committer-wins under snapshot isolation), and a background sweep
// prunes versions below the oldest active watermark, so no active snapshot
// ever loses data it could still read.
//
// Components:
//   - Txn: begin/read/write/commit with rollback-only semantics on failure.
//   - near.Provider: optional per-node cache of latest committed values
//     (Ristretto, BigCache), validated per read against rev.Store revisions.
//   - rev.Store: per-key revision counter invalidating near records on
//     commit. Local in-process by default, Redis for multi-node setups.
//   - affinity.Topology: primary/backup classification for entry views.
//   - EntryView: read-only projection for eviction and iteration; every
//     mutating call fails with ErrReadOnlyEntry.
//
// The coordinator is a single in-process sequencer. Replicating or electing
// it is deliberately out of scope here; deploy one store per node and keep
// cross-node invalidation on the revision store.
//
// Keys owned by the store in near providers:
//
//	near:<name>:<key> - latest committed value records
//
// Typical transaction:
//
//	tx, _ := st.Begin()
//	v, ok, _ := tx.Get(ctx, "k")
//	_ = tx.Put("k", update(v, ok))
//	if err := tx.Commit(ctx); errors.Is(err, ignite.ErrSerializationConflict) {
//	    // retry with a fresh transaction
//	}
package ignite
