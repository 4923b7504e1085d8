package ignite

import (
	"context"

	c "github.com/slukyano/ignite/codec"
)

// KV is a typed front over a Store: values of type V encoded through a
// pluggable Codec. All transactional semantics come from the underlying
// store unchanged.
type KV[V any] struct {
	s Store
	c c.Codec[V]
}

// NewKV pairs a store with a codec.
func NewKV[V any](s Store, codec c.Codec[V]) KV[V] {
	return KV[V]{s: s, c: codec}
}

// Get reads and decodes a key inside tx.
func (m KV[V]) Get(ctx context.Context, tx *Txn, key string) (V, bool, error) {
	var zero V
	b, ok, err := tx.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := m.c.Decode(b)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// GetAt reads and decodes a key at a snapshot, outside any transaction.
func (m KV[V]) GetAt(ctx context.Context, key string, snap Snapshot) (V, bool, error) {
	var zero V
	b, ok, err := m.s.Get(ctx, key, snap)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := m.c.Decode(b)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Put encodes and stages a write inside tx.
func (m KV[V]) Put(tx *Txn, key string, value V) error {
	b, err := m.c.Encode(value)
	if err != nil {
		return err
	}
	return tx.Put(key, b)
}

// Remove stages a delete inside tx.
func (m KV[V]) Remove(tx *Txn, key string) error { return tx.Remove(key) }
