package ignite

import (
	"context"
	"fmt"
	"time"

	"github.com/slukyano/ignite/internal/wire"
)

// PeekMode selects where a peek looks for a value.
type PeekMode uint8

const (
	// PeekSmart polls transaction-local state first, then committed state.
	// This is the default; an empty mode list means Smart.
	PeekSmart PeekMode = iota
	// PeekTx returns only the surrounding transaction's staged write.
	PeekTx
	// PeekCommitted returns the latest committed value, ignoring any
	// transaction context.
	PeekCommitted
	// PeekNear returns only what the near cache holds right now.
	PeekNear
)

// EntryView is a restricted, non-owning projection of one entry, handed to
// eviction policies and iteration callers. It never mutates the chain
// directly; everything goes through store operations. Two views are equal
// iff they wrap the same key of the same store, regardless of the value the
// entry holds at comparison time, so views stay stable while the entry
// changes underneath.
type EntryView struct {
	s   *store
	key string
}

// Entry returns a read-only view of key. The view is valid whether or not
// the entry currently exists.
func (s *store) Entry(key string) EntryView { return EntryView{s: s, key: key} }

func (e EntryView) Key() string { return e.key }

// Peek returns the best-effort visible value without transaction context.
// Modes are polled in the order given; no modes means PeekSmart.
func (e EntryView) Peek(ctx context.Context, modes ...PeekMode) ([]byte, bool) {
	return e.PeekWithTx(ctx, nil, modes...)
}

// PeekWithTx is Peek with an optional surrounding transaction whose staged
// writes PeekTx and PeekSmart may observe.
func (e EntryView) PeekWithTx(ctx context.Context, tx *Txn, modes ...PeekMode) ([]byte, bool) {
	if len(modes) == 0 {
		modes = []PeekMode{PeekSmart}
	}
	for _, m := range modes {
		if v, ok := e.peek0(ctx, m, tx); ok {
			return v, true
		}
	}
	return nil, false
}

func (e EntryView) peek0(ctx context.Context, mode PeekMode, tx *Txn) ([]byte, bool) {
	switch mode {
	case PeekSmart:
		if v, ok := e.peek0(ctx, PeekTx, tx); ok {
			return v, true
		}
		return e.peek0(ctx, PeekCommitted, tx)

	case PeekTx:
		if tx == nil {
			return nil, false
		}
		tx.mu.Lock()
		defer tx.mu.Unlock()
		if tx.state != txActive {
			return nil, false
		}
		w, ok := tx.writes[e.key]
		if !ok || w.tombstone {
			return nil, false
		}
		return w.value, true

	case PeekCommitted:
		ch := e.s.lookup(e.key)
		if ch == nil {
			return nil, false
		}
		h := ch.head.Load()
		if h == nil || h.tombstone || h.expired(time.Now()) {
			return nil, false
		}
		return h.value, true

	case PeekNear:
		if e.s.nearc == nil {
			return nil, false
		}
		return e.s.nearGet(ctx, e.key, e.s.coord.snapshot())

	default:
		return nil, false
	}
}

// Version returns the commit order of the entry's newest committed version,
// or 0 when the entry is absent. A removed entry reads as 0, never panics.
func (e EntryView) Version() uint64 {
	if ch := e.s.lookup(e.key); ch != nil {
		return ch.newestOrder()
	}
	return 0
}

// ExpirationTime returns when the current committed value expires; the zero
// time means it does not.
func (e EntryView) ExpirationTime() time.Time {
	ch := e.s.lookup(e.key)
	if ch == nil {
		return time.Time{}
	}
	if h := ch.head.Load(); h != nil {
		return h.expireAt
	}
	return time.Time{}
}

// Primary reports whether the local node is the primary owner of the key.
func (e EntryView) Primary() bool { return e.s.topo.Primary(e.key) }

// Backup reports whether the local node holds a backup copy of the key.
func (e EntryView) Backup() bool { return e.s.topo.Backup(e.key) }

// Partition returns the partition the key maps to.
func (e EntryView) Partition() int { return e.s.topo.Partition(e.key) }

// Evict delegates to the eviction manager; same safety rules apply.
func (e EntryView) Evict(ctx context.Context) bool { return e.s.Evict(ctx, e.key) }

// The view is a read path only. Every mutating operation fails loudly
// instead of silently doing nothing, so an eviction policy can never write
// through it by accident.

func (e EntryView) Set([]byte) error     { return ErrReadOnlyEntry }
func (e EntryView) Replace([]byte) error { return ErrReadOnlyEntry }
func (e EntryView) Remove() error        { return ErrReadOnlyEntry }
func (e EntryView) Lock() error          { return ErrReadOnlyEntry }
func (e EntryView) Reload() error        { return ErrReadOnlyEntry }

// EncodeEntry serializes a detachable handle to the view: owning store name,
// key and the commit order at encode time. Values are never serialized; the
// store stays authoritative.
func EncodeEntry(e EntryView) ([]byte, error) {
	return wire.EncodeView(wire.ViewRecord{
		Store: e.s.name,
		Key:   e.key,
		Order: e.Version(),
	})
}

// DecodeEntry re-binds an encoded view to the given store. The store handle
// is passed explicitly; a view never reaches back into ambient state.
func DecodeEntry(b []byte, st Store) (EntryView, error) {
	rec, err := wire.DecodeView(b)
	if err != nil {
		return EntryView{}, err
	}
	impl, ok := st.(*store)
	if !ok {
		return EntryView{}, fmt.Errorf("ignite: unsupported store implementation %T", st)
	}
	if impl.name != rec.Store {
		return EntryView{}, fmt.Errorf("ignite: view belongs to store %q, not %q", rec.Store, impl.name)
	}
	return impl.Entry(rec.Key), nil
}
