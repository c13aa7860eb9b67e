package graph

import "strings"

// PathElement is one step of a Path: exactly one of a vertex or an edge.
type PathElement struct {
	vertex *Vertex
	edge   *Edge
}

// VertexElement wraps a vertex as a path element.
func VertexElement(v *Vertex) PathElement { return PathElement{vertex: v} }

// EdgeElement wraps an edge as a path element.
func EdgeElement(e *Edge) PathElement { return PathElement{edge: e} }

func (p PathElement) AsVertex() (*Vertex, bool) { return p.vertex, p.vertex != nil }

func (p PathElement) AsEdge() (*Edge, bool) { return p.edge, p.edge != nil }

// ID returns the identifier of the wrapped element.
func (p PathElement) ID() ID {
	if p.vertex != nil {
		return p.vertex.ID
	}
	if p.edge != nil {
		return p.edge.ID
	}
	return ""
}

func (p PathElement) String() string {
	if p.vertex != nil {
		return p.vertex.String()
	}
	if p.edge != nil {
		return p.edge.String()
	}
	return "<nil>"
}

// Path is an ordered, immutable sequence of path elements. Append returns a
// new Path; the receiver and any earlier copies never observe the change.
type Path struct {
	elems []PathElement
}

// NewPath starts a path at v.
func NewPath(v *Vertex) Path {
	return Path{elems: []PathElement{VertexElement(v)}}
}

// Append returns a copy of p extended by elem.
func (p Path) Append(elem PathElement) Path {
	elems := make([]PathElement, len(p.elems), len(p.elems)+1)
	copy(elems, p.elems)
	return Path{elems: append(elems, elem)}
}

// End returns the vertex the path currently stands on. When the last element
// is an edge, End returns the edge's far endpoint with deferred details.
func (p Path) End() (*Vertex, error) {
	if len(p.elems) == 0 {
		return nil, ErrEmptyPath
	}
	last := p.elems[len(p.elems)-1]
	if v, ok := last.AsVertex(); ok {
		return v, nil
	}
	if e, ok := last.AsEdge(); ok {
		return &Vertex{ID: e.OtherID(), Label: e.OtherLabel()}, nil
	}
	return nil, ErrEmptyPath
}

func (p Path) Len() int { return len(p.elems) }

// Elements returns a copy of the path's elements.
func (p Path) Elements() []PathElement {
	out := make([]PathElement, len(p.elems))
	copy(out, p.elems)
	return out
}

func (p Path) String() string {
	parts := make([]string, len(p.elems))
	for i, e := range p.elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
