// Package keyed provides the keyed collection primitives the replica is
// built on: an insertion-ordered dictionary and a copy-on-insert repository.
package keyed

import (
	"encoding/json"
	"sort"
)

// InsertMode selects which end of the sequence a new entry goes to.
type InsertMode int

const (
	Append InsertMode = iota
	Prepend
)

// Dict is an insertion-ordered keyed sequence. Keyed reads are O(1) via the
// index; deletes and positional inserts shift the sequence and reindex the
// tail, so they are O(n). When a sort key
// is configured, inserts of new ids go to the sorted position instead of an
// end (position found by binary search, comparison reverse-lexicographic).
//
// Dict is not safe for concurrent use; the owner serializes access.
type Dict[V any] struct {
	idOf    func(V) string
	sortKey func(V) string
	items   []V
	index   map[string]int
}

// NewDict creates a dictionary whose entries are keyed by idOf.
func NewDict[V any](idOf func(V) string) *Dict[V] {
	return &Dict[V]{
		idOf:  idOf,
		index: make(map[string]int),
	}
}

// NewSortedDict creates a dictionary that keeps new entries ordered by
// sortKey, highest key first.
func NewSortedDict[V any](idOf func(V) string, sortKey func(V) string) *Dict[V] {
	d := NewDict(idOf)
	d.sortKey = sortKey
	return d
}

// Len returns the number of entries.
func (d *Dict[V]) Len() int { return len(d.items) }

// Get returns the entry for id, if present.
func (d *Dict[V]) Get(id string) (V, bool) {
	if i, ok := d.index[id]; ok {
		return d.items[i], true
	}
	var zero V
	return zero, false
}

// All returns the backing sequence in order. Callers must not mutate it.
func (d *Dict[V]) All() []V { return d.items }

// First returns the first entry, if any.
func (d *Dict[V]) First() (V, bool) {
	if len(d.items) == 0 {
		var zero V
		return zero, false
	}
	return d.items[0], true
}

// Last returns the last entry, if any.
func (d *Dict[V]) Last() (V, bool) {
	if len(d.items) == 0 {
		var zero V
		return zero, false
	}
	return d.items[len(d.items)-1], true
}

// IndexOf returns the position of id, or -1.
func (d *Dict[V]) IndexOf(id string) int {
	if i, ok := d.index[id]; ok {
		return i
	}
	return -1
}

// Upsert stores v. An existing id is replaced in place, keeping its
// position. A new id is inserted at the sorted position when a sort key is
// configured, otherwise at the end selected by mode.
func (d *Dict[V]) Upsert(v V, mode InsertMode) {
	id := d.idOf(v)
	if i, ok := d.index[id]; ok {
		d.items[i] = v
		return
	}
	switch {
	case d.sortKey != nil:
		d.insertAt(d.sortedPos(v), v)
	case mode == Prepend:
		d.insertAt(0, v)
	default:
		d.items = append(d.items, v)
		d.index[id] = len(d.items) - 1
	}
}

// Update replaces the entry with v's id in place. Returns false if absent.
func (d *Dict[V]) Update(v V) bool {
	i, ok := d.index[d.idOf(v)]
	if !ok {
		return false
	}
	d.items[i] = v
	return true
}

// Patch applies fn to the stored entry in place. Returns false if absent.
// This is the merge point for partial updates; fn decides which fields of
// the stored value change.
func (d *Dict[V]) Patch(id string, fn func(v V) V) bool {
	i, ok := d.index[id]
	if !ok {
		return false
	}
	d.items[i] = fn(d.items[i])
	return true
}

// Remove deletes the entry with v's id. Returns whether one existed.
func (d *Dict[V]) Remove(v V) bool {
	return d.RemoveID(d.idOf(v))
}

// RemoveID deletes the entry for id. Returns whether one existed.
func (d *Dict[V]) RemoveID(id string) bool {
	i, ok := d.index[id]
	if !ok {
		return false
	}
	d.items = append(d.items[:i], d.items[i+1:]...)
	delete(d.index, id)
	d.reindexFrom(i)
	return true
}

// Clear empties the sequence and the index.
func (d *Dict[V]) Clear() {
	d.items = nil
	d.index = make(map[string]int)
}

// Filter retains only entries for which keep returns true, preserving
// order, and rebuilds the index.
func (d *Dict[V]) Filter(keep func(V) bool) {
	kept := d.items[:0]
	for _, v := range d.items {
		if keep(v) {
			kept = append(kept, v)
		}
	}
	d.items = kept
	d.index = make(map[string]int, len(kept))
	d.reindexFrom(0)
}

// MarshalJSON serializes the sequence as a JSON array in order.
func (d *Dict[V]) MarshalJSON() ([]byte, error) {
	if d.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.items)
}

// UnmarshalJSON clears the dictionary and reinserts the array entries in
// the given order, bypassing the sort key so a snapshot round-trips
// byte-for-byte.
func (d *Dict[V]) UnmarshalJSON(data []byte) error {
	var arr []V
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	d.items = arr
	d.index = make(map[string]int, len(arr))
	d.reindexFrom(0)
	return nil
}

// Load replaces the contents with items, preserving the given order and
// bypassing the sort key. Used when restoring a snapshot.
func (d *Dict[V]) Load(items []V) {
	d.items = append([]V(nil), items...)
	d.index = make(map[string]int, len(items))
	d.reindexFrom(0)
}

func (d *Dict[V]) sortedPos(v V) int {
	key := d.sortKey(v)
	// Descending by key: first position whose key is below ours.
	return sort.Search(len(d.items), func(i int) bool {
		return d.sortKey(d.items[i]) < key
	})
}

func (d *Dict[V]) insertAt(i int, v V) {
	d.items = append(d.items, v)
	copy(d.items[i+1:], d.items[i:])
	d.items[i] = v
	d.reindexFrom(i)
}

func (d *Dict[V]) reindexFrom(i int) {
	for ; i < len(d.items); i++ {
		d.index[d.idOf(d.items[i])] = i
	}
}
