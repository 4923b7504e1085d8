package ignite

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the store calls them on
// hot paths. Wrap with hooks/async to decouple slow sinks.
type Hooks interface {
	// A commit failed the serialization check.
	ConflictDetected(key string, otherTx, commitOrder uint64)

	// A transaction was force-rolled-back for exceeding the tracked-key bound.
	TxForceAborted(tx uint64, trackedKeys int)

	// An entry was removed by the eviction manager.
	// reason is one of "expired", "tombstone", "capacity", "manual".
	EntryEvicted(key string, reason string)

	// A prune sweep finished. removed is the number of versions reclaimed.
	VersionsPruned(horizon uint64, removed int)

	// A near-cache record was deleted by the store on read.
	// reason is one of "corrupt", "rev_mismatch", "expired".
	NearSelfHeal(key string, reason string)

	// Near provider returned ok=false on Set (backpressure/eviction).
	NearSetRejected(key string)

	// Revision store errors (snapshot or bump).
	RevError(key string, err error)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) ConflictDetected(string, uint64, uint64) {}
func (NopHooks) TxForceAborted(uint64, int)              {}
func (NopHooks) EntryEvicted(string, string)             {}
func (NopHooks) VersionsPruned(uint64, int)              {}
func (NopHooks) NearSelfHeal(string, string)             {}
func (NopHooks) NearSetRejected(string)                  {}
func (NopHooks) RevError(string, error)                  {}
