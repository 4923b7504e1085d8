package ignite

import "time"

// Row is one scan result.
type Row struct {
	Key   string
	Value []byte
}

// Predicate filters rows; nil keeps everything.
type Predicate func(Row) bool

// Projection rewrites rows before they are returned; nil is identity.
type Projection func(Row) Row

// Scanner is a lazy, single-pass cursor over a key range at a fixed
// snapshot. The key range is captured from a copy-on-write clone of the key
// index at scan start, and each value is resolved against the snapshot on
// Next, so concurrent writers never change what a scan observes.
type Scanner struct {
	s    *store
	snap Snapshot
	keys []string
	pred Predicate
	proj Projection
	pos  int
}

// Scan returns a cursor over [lower, upper) at the given snapshot. An empty
// upper bound means "to the end"; an empty lower bound starts at the first
// key. The query engine drives this for range queries.
func (s *store) Scan(snap Snapshot, lower, upper string, pred Predicate, proj Projection) *Scanner {
	s.mu.RLock()
	tree := s.keys.Clone() // O(1); later inserts copy-on-write, clone stays fixed
	s.mu.RUnlock()

	sc := &Scanner{s: s, snap: snap, pred: pred, proj: proj}
	collect := func(k string) bool {
		sc.keys = append(sc.keys, k)
		return true
	}
	if upper == "" {
		tree.AscendGreaterOrEqual(lower, collect)
	} else {
		tree.AscendRange(lower, upper, collect)
	}
	return sc
}

// Next returns the next row, or ok=false when the scan is exhausted.
// Keys whose visible state is absent (tombstone, expired, evicted mid-scan)
// are skipped.
func (sc *Scanner) Next() (Row, bool) {
	for sc.pos < len(sc.keys) {
		key := sc.keys[sc.pos]
		sc.pos++

		ch := sc.s.lookup(key)
		if ch == nil {
			continue
		}
		v, err := ch.readVersion(sc.snap)
		if err != nil {
			// Entry raced eviction; certified invisible, skip it.
			continue
		}
		if v == nil || v.tombstone || v.expired(time.Now()) {
			continue
		}
		row := Row{Key: key, Value: v.value}
		if sc.pred != nil && !sc.pred(row) {
			continue
		}
		if sc.proj != nil {
			row = sc.proj(row)
		}
		return row, true
	}
	return Row{}, false
}
