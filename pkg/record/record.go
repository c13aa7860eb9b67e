package record

import (
	"fmt"
	"strings"

	"github.com/tidwall/btree"
)

// KeyID is a resolved tag identifier.
type KeyID int32

// Tag returns a pointer to id, for the optional tag arguments below.
func Tag(id KeyID) *KeyID { return &id }

// Record is one row of traversal state: a head entry (the current position)
// plus entries stored under tags.
//
// Records are values with copy-on-write columns. Append and Set return a new
// Record and leave the receiver untouched; copying shares structure until
// either side writes, so extending a record is cheap.
//
// Every derived record holds its own column handle, so records derived from
// a common origin can be handed to different goroutines. A single Record is
// still owned by one goroutine at a time: reading it concurrently is fine,
// deriving from it on two goroutines at once is not.
type Record struct {
	head    Entry
	columns *btree.Map[KeyID, Entry]
}

// New returns a record whose head is e.
func New(head Entry) Record {
	return Record{head: head}
}

// Get returns the entry under tag, or the head when tag is nil.
func (r Record) Get(tag *KeyID) (Entry, bool) {
	if tag == nil {
		return r.head, r.head.kind != KindNone
	}
	if r.columns == nil {
		return Entry{}, false
	}
	return r.columns.Get(*tag)
}

// Head returns the current entry.
func (r Record) Head() (Entry, bool) {
	return r.Get(nil)
}

// Append returns a copy of r whose head is e. When alias is set, e is also
// stored under alias.
func (r Record) Append(e Entry, alias *KeyID) Record {
	if alias == nil {
		return Record{head: e, columns: r.ownColumns()}
	}
	out := Record{head: e, columns: r.copyColumns()}
	out.columns.Set(*alias, e)
	return out
}

// Set returns a copy of r with e stored under tag; the head does not move.
// A nil tag replaces the head.
func (r Record) Set(tag *KeyID, e Entry) Record {
	if tag == nil {
		return Record{head: e, columns: r.ownColumns()}
	}
	out := Record{head: r.head, columns: r.copyColumns()}
	out.columns.Set(*tag, e)
	return out
}

// Tags returns the tags present, in ascending order.
func (r Record) Tags() []KeyID {
	if r.columns == nil {
		return []KeyID{}
	}
	return r.columns.Keys()
}

// Len returns the number of tagged entries.
func (r Record) Len() int {
	if r.columns == nil {
		return 0
	}
	return r.columns.Len()
}

// ownColumns is copyColumns that keeps an empty record empty.
func (r Record) ownColumns() *btree.Map[KeyID, Entry] {
	if r.columns == nil {
		return nil
	}
	return r.columns.Copy()
}

// copyColumns returns a writable handle on r's columns. Copy is O(1) but
// touches the source handle, so it runs on the goroutine deriving the record.
func (r Record) copyColumns() *btree.Map[KeyID, Entry] {
	if r.columns == nil {
		return new(btree.Map[KeyID, Entry])
	}
	return r.columns.Copy()
}

func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{head: %s", r.head)
	if r.columns != nil {
		r.columns.Scan(func(tag KeyID, e Entry) bool {
			fmt.Fprintf(&b, ", %d: %s", tag, e)
			return true
		})
	}
	b.WriteString("}")
	return b.String()
}
