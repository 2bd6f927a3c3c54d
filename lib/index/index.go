package index

import (
	"fmt"

	"github.com/ValentinKolb/tabkv/lib/seglog"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Key and Entry Types
// --------------------------------------------------------------------------

// Key is the logical identity of an object.
type Key struct {
	TableID  uint32
	ObjectID uint64
}

func (k Key) String() string {
	return fmt.Sprintf("(%d,%d)", k.TableID, k.ObjectID)
}

// Tag discriminates what an index entry references.
type Tag uint8

const (
	// TagNone marks the absence of an entry. It is the expected tag to pass
	// to Replace when the caller requires the key to be empty.
	TagNone Tag = iota
	TagObject
	TagTombstone
)

func (t Tag) String() string {
	switch t {
	case TagNone:
		return "None"
	case TagObject:
		return "Object"
	case TagTombstone:
		return "Tombstone"
	default:
		return "Unknown"
	}
}

// Entry is a tagged, non-owning reference into the log. At most one entry
// exists per key at any time.
type Entry struct {
	Tag Tag
	Ref seglog.Ref
}

// --------------------------------------------------------------------------
// Index
// --------------------------------------------------------------------------

// Index maps keys to tagged log references. Lookups are wait-free; updates
// are atomic per key. The index performs no payload allocation.
type Index struct {
	m *xsync.MapOf[Key, Entry]
}

// New creates an empty index.
func New() *Index {
	return &Index{m: xsync.NewMapOf[Key, Entry]()}
}

// Lookup returns the entry for the key, if any.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (idx *Index) Lookup(tableID uint32, objectID uint64) (Entry, bool) {
	return idx.m.Load(Key{tableID, objectID})
}

// Insert stores the entry only if the key is currently absent. Returns true
// if the entry was stored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (idx *Index) Insert(tableID uint32, objectID uint64, e Entry) bool {
	_, loaded := idx.m.LoadOrStore(Key{tableID, objectID}, e)
	return !loaded
}

// Replace atomically swaps in the entry if the current tag matches expect
// (TagNone means the key must be absent). Returns true if the swap
// happened.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (idx *Index) Replace(tableID uint32, objectID uint64, e Entry, expect Tag) bool {
	replaced := false
	idx.m.Compute(Key{tableID, objectID}, func(old Entry, loaded bool) (Entry, bool) {
		current := TagNone
		if loaded {
			current = old.Tag
		}
		if current != expect {
			// Keep the old entry; delete nothing if the key was absent.
			return old, !loaded
		}
		replaced = true
		return e, false
	})
	return replaced
}

// Remove deletes the entry for the key and returns it.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (idx *Index) Remove(tableID uint32, objectID uint64) (Entry, bool) {
	return idx.m.LoadAndDelete(Key{tableID, objectID})
}

// RangeTombstones iterates all tombstone entries. Used by the sweep that
// runs after recovery completes. Iteration stops when fn returns false.
//
// Thread-safety: This method is thread-safe; entries stored or removed
// during iteration may or may not be visited.
func (idx *Index) RangeTombstones(fn func(k Key, e Entry) bool) {
	idx.m.Range(func(k Key, e Entry) bool {
		if e.Tag != TagTombstone {
			return true
		}
		return fn(k, e)
	})
}

// Len returns the number of entries currently indexed.
func (idx *Index) Len() int {
	return idx.m.Size()
}
