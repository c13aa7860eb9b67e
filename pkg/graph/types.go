// Package graph defines the graph backend API consumed by nornicflow operators.
//
// A backend (Graph) prepares reusable exploration statements once, at plan
// build time, and executes them per source vertex at run time. Execution
// returns a lazy sequence: nothing is fetched until the caller pulls, and
// each pull fetches at most one element from the underlying store.
//
// Example:
//
//	g := graph.NewStorageGraph(storage.NewMemoryEngine())
//	stmt, err := g.PrepareExploreEdge(graph.Out, &graph.QueryParams{Labels: []string{"KNOWS"}})
//	if err != nil {
//		return err
//	}
//	edges, err := stmt.Exec(ctx, "alice")
//	if err != nil {
//		return err
//	}
//	for e, err := range edges {
//		...
//	}
package graph

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidParams    = errors.New("invalid query params")
	ErrEmptyPath        = errors.New("path has no end")
)

// ID identifies a vertex or an edge within one backend.
type ID string

// Direction selects which adjacency of a vertex is explored.
type Direction uint8

const (
	Out Direction = iota
	In
	Both
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Valid reports whether d is one of Out, In or Both.
func (d Direction) Valid() bool {
	return d <= Both
}

// ParseDirection parses "out", "in" or "both" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "out", "outgoing":
		return Out, nil
	case "in", "incoming":
		return In, nil
	case "both":
		return Both, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Details is the property payload of a graph element.
//
// A zero Details is deferred: nothing was loaded, which is different from a
// loaded element that happens to have no properties.
type Details struct {
	props  map[string]any
	loaded bool
}

// NewDetails wraps a loaded property map. The map is copied.
func NewDetails(props map[string]any) Details {
	return Details{props: maps.Clone(props), loaded: true}
}

// EmptyDetails returns a deferred payload.
func EmptyDetails() Details {
	return Details{}
}

// IsEmpty reports whether the payload was never loaded.
func (d Details) IsEmpty() bool {
	return !d.loaded
}

// Get returns one property.
func (d Details) Get(key string) (any, bool) {
	v, ok := d.props[key]
	return v, ok
}

// Properties returns a copy of the loaded properties.
func (d Details) Properties() map[string]any {
	return maps.Clone(d.props)
}

// Len returns the number of loaded properties.
func (d Details) Len() int {
	return len(d.props)
}

// Vertex is a graph vertex as seen by operators. Vertices are shared between
// records and must not be mutated after construction.
type Vertex struct {
	ID      ID
	Label   string
	Details Details
}

// NewVertex returns a vertex with deferred details.
func NewVertex(id ID, label string) *Vertex {
	return &Vertex{ID: id, Label: label}
}

func (v *Vertex) ElementLabel() string { return v.Label }

func (v *Vertex) Property(key string) (any, bool) { return v.Details.Get(key) }

func (v *Vertex) String() string {
	if v.Label == "" {
		return fmt.Sprintf("v[%s]", v.ID)
	}
	return fmt.Sprintf("v[%s:%s]", v.ID, v.Label)
}

// Edge is a directed graph edge as seen by operators.
//
// FromSrc records which endpoint the edge was reached from: true when it was
// explored from SrcID (an outgoing edge), false when explored from DstID.
type Edge struct {
	ID       ID
	Label    string
	SrcID    ID
	DstID    ID
	SrcLabel string
	DstLabel string
	FromSrc  bool
	Details  Details
}

// OtherID returns the endpoint opposite to the one the edge was explored from.
func (e *Edge) OtherID() ID {
	if e.FromSrc {
		return e.DstID
	}
	return e.SrcID
}

// OtherLabel returns the label of the endpoint returned by OtherID, if known.
func (e *Edge) OtherLabel() string {
	if e.FromSrc {
		return e.DstLabel
	}
	return e.SrcLabel
}

func (e *Edge) ElementLabel() string { return e.Label }

func (e *Edge) Property(key string) (any, bool) { return e.Details.Get(key) }

func (e *Edge) String() string {
	return fmt.Sprintf("e[%s][%s-%s->%s]", e.ID, e.SrcID, e.Label, e.DstID)
}

// Element is anything a Predicate can be evaluated against.
type Element interface {
	ElementLabel() string
	Property(key string) (any, bool)
}

// PropertyElement adapts a raw label and property map to Element.
type PropertyElement struct {
	Label      string
	Properties map[string]any
}

func (p PropertyElement) ElementLabel() string { return p.Label }

func (p PropertyElement) Property(key string) (any, bool) {
	v, ok := p.Properties[key]
	return v, ok
}
