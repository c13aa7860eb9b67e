package record

import (
	"iter"

	"github.com/orneryd/nornicflow/pkg/graph"
)

// ExpandIter lazily turns each child into a new record: a copy of origin
// whose head is the child, also stored under alias when alias is set.
//
// Nothing is pulled from children until the result is ranged over, and one
// child is pulled per emitted record. The first error from children is
// yielded and ends the sequence.
func ExpandIter[T any](origin Record, alias *KeyID, children iter.Seq2[T, error], entry func(T) Entry) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for child, err := range children {
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(origin.Append(entry(child), alias), nil) {
				return
			}
		}
	}
}

// PathExpandIter lazily extends path by each child. Every emitted record is
// a copy of origin holding its own extended path as head and, when tag is
// set, under tag as well. path itself is never modified, so siblings never
// see each other's steps.
func PathExpandIter[T any](origin Record, tag *KeyID, path graph.Path, children iter.Seq2[T, error], elem func(T) graph.PathElement) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for child, err := range children {
			if err != nil {
				yield(Record{}, err)
				return
			}
			extended := PathEntry(path.Append(elem(child)))
			out := origin.Set(nil, extended)
			if tag != nil {
				out = out.Set(tag, extended)
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}
