// Package storage holds the property-graph stores behind the nornicflow graph
// API: an in-memory engine, a Badger-backed engine, a namespacing wrapper and
// a Neo4j JSON export loader.
//
// Nodes carry labels and properties; edges are directed and typed. Writes
// are eager. Adjacency is read through lazy streams so a traversal step never
// materializes a node's full edge list:
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	_ = engine.BulkCreateNodes([]*storage.Node{{ID: "alice"}, {ID: "bob"}})
//	_ = engine.CreateEdge(&storage.Edge{ID: "k1", StartNode: "alice", EndNode: "bob", Type: "KNOWS"})
//
//	for edge, err := range engine.StreamOutgoingEdges(ctx, "alice") {
//		if err != nil {
//			return err
//		}
//		fmt.Println(edge.EndNode)
//	}
package storage

import (
	"context"
	"errors"
	"iter"
	"maps"
	"slices"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidData   = errors.New("invalid data")
	ErrInvalidEdge   = errors.New("invalid edge: start or end node not found")
	ErrStorageClosed = errors.New("storage closed")
)

type (
	NodeID string
	EdgeID string
)

// Node is a stored vertex. The first label is the one the graph API reports.
// Engines never hand out their own copy.
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// PrimaryLabel returns the first label of the node, or "" if it has none.
func (n *Node) PrimaryLabel() string {
	if n == nil || len(n.Labels) == 0 {
		return ""
	}
	return n.Labels[0]
}

func (n *Node) validate() error {
	if n == nil {
		return ErrInvalidData
	}
	if n.ID == "" {
		return ErrInvalidID
	}
	return nil
}

func (n *Node) clone() *Node {
	if n == nil {
		return nil
	}
	return &Node{ID: n.ID, Labels: slices.Clone(n.Labels), Properties: maps.Clone(n.Properties)}
}

// Edge is a stored relationship from StartNode to EndNode. Type doubles as
// the edge label.
type Edge struct {
	ID         EdgeID         `json:"id"`
	StartNode  NodeID         `json:"startNode"`
	EndNode    NodeID         `json:"endNode"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

func (e *Edge) validate() error {
	if e == nil {
		return ErrInvalidData
	}
	if e.ID == "" {
		return ErrInvalidID
	}
	return nil
}

func (e *Edge) clone() *Edge {
	if e == nil {
		return nil
	}
	c := *e
	c.Properties = maps.Clone(e.Properties)
	return &c
}

// Engine is the write and point-lookup side of a storage backend. Loaders
// fill it, the graph API reads single nodes from it. Implementations are
// shared by every prepared statement and must be safe for concurrent use.
type Engine interface {
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	CreateEdge(edge *Edge) error

	// Bulk variants validate the whole batch before writing any of it.
	BulkCreateNodes(nodes []*Node) error
	BulkCreateEdges(edges []*Edge) error

	Close() error
}

// EdgeStreamer is implemented by engines that can stream adjacency lazily.
//
// The returned sequences do no work until ranged over and fetch one edge per
// pull. Stopping the range early releases any resources (iterators,
// transactions) held by the sequence.
type EdgeStreamer interface {
	StreamOutgoingEdges(ctx context.Context, nodeID NodeID) iter.Seq2[*Edge, error]
	StreamIncomingEdges(ctx context.Context, nodeID NodeID) iter.Seq2[*Edge, error]
}

// StreamingEngine is an Engine that also streams adjacency.
type StreamingEngine interface {
	Engine
	EdgeStreamer
}

// errSeq returns a sequence that yields a single error.
func errSeq(err error) iter.Seq2[*Edge, error] {
	return func(yield func(*Edge, error) bool) {
		yield(nil, err)
	}
}
