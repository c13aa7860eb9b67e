// Package record holds the per-row traversal state that flows between
// operators, and the iterators that extend it.
package record

import (
	"fmt"

	"github.com/orneryd/nornicflow/pkg/graph"
)

// Kind discriminates the variants of an Entry.
type Kind uint8

const (
	KindNone Kind = iota
	KindVertex
	KindEdge
	KindPath
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	case KindPath:
		return "path"
	case KindScalar:
		return "scalar"
	default:
		return "none"
	}
}

// Entry is the value stored under a tag: exactly one of a vertex, an edge, a
// path or a scalar. The zero Entry is KindNone.
type Entry struct {
	kind   Kind
	vertex *graph.Vertex
	edge   *graph.Edge
	path   graph.Path
	scalar any
}

func VertexEntry(v *graph.Vertex) Entry { return Entry{kind: KindVertex, vertex: v} }

func EdgeEntry(e *graph.Edge) Entry { return Entry{kind: KindEdge, edge: e} }

func PathEntry(p graph.Path) Entry { return Entry{kind: KindPath, path: p} }

func ScalarEntry(v any) Entry { return Entry{kind: KindScalar, scalar: v} }

func (e Entry) Kind() Kind { return e.kind }

func (e Entry) AsVertex() (*graph.Vertex, bool) { return e.vertex, e.kind == KindVertex }

func (e Entry) AsEdge() (*graph.Edge, bool) { return e.edge, e.kind == KindEdge }

func (e Entry) AsPath() (graph.Path, bool) { return e.path, e.kind == KindPath }

func (e Entry) AsScalar() (any, bool) { return e.scalar, e.kind == KindScalar }

func (e Entry) String() string {
	switch e.kind {
	case KindVertex:
		return e.vertex.String()
	case KindEdge:
		return e.edge.String()
	case KindPath:
		return e.path.String()
	case KindScalar:
		return fmt.Sprintf("%v", e.scalar)
	default:
		return "<none>"
	}
}
